package httpserver_test

import (
	"io"
	"net/http"
	"testing"

	httpserver "mediafetch/pkg/http/server"
)

func TestServer(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("pong"))
	})

	srv, err := httpserver.New(handler, httpserver.Options{Addr: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	res, err := http.Get("http://" + srv.Addr())
	if err != nil {
		t.Fatalf("GET error: %v", err)
	}

	body, _ := io.ReadAll(res.Body)
	res.Body.Close()

	if string(body) != "pong" {
		t.Errorf("body = %q, want pong", body)
	}

	if err := srv.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error: %v", err)
	}

	if err, ok := <-srv.Notify(); ok {
		t.Errorf("Notify() reported %v after a clean shutdown", err)
	}
}

func TestServerListenError(t *testing.T) {
	srv, err := httpserver.New(http.NotFoundHandler(), httpserver.Options{Addr: "127.0.0.1:0"})
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Shutdown()

	if _, err := httpserver.New(http.NotFoundHandler(), httpserver.Options{Addr: srv.Addr()}); err == nil {
		t.Error("expected an error for an address in use")
	}
}
