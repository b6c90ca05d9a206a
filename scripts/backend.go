//go:build ignore

// Backend is a small demo app for trying the router by hand. It serves a
// page that loads an absolute-path stylesheet and script, so the browser
// requests them without the route prefix and the router has to fall back to
// the Referer.
//
// Usage:
//
//	go run scripts/backend.go --port 8081 --name app
//
// then register it on the admin page as /app -> 8081 and open
// http://127.0.0.1:3003/app.
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
)

const page = `<!DOCTYPE html>
<html>
<head><title>%[1]s</title><link rel="stylesheet" href="/static/style.css"></head>
<body>
<h1>%[1]s</h1>
<p>Instance <code>%[2]s</code></p>
<pre id="out"></pre>
<script src="/static/app.js"></script>
</body>
</html>
`

const script = `fetch("/api/whoami").then(r => r.json()).then(j => {
  document.getElementById("out").textContent = JSON.stringify(j, null, 2);
});
`

func main() {
	port := pflag.IntP("port", "p", 8081, "port to listen on")
	name := pflag.StringP("name", "n", "demo", "name shown on the page")
	pflag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, nil)).With(slog.String("app", *name))
	instance := uuid.NewString()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, page, *name, instance)
	})
	mux.HandleFunc("GET /static/style.css", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/css")
		w.Write([]byte("body { font-family: sans-serif; background: #eef; }\n"))
	})
	mux.HandleFunc("GET /static/app.js", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/javascript")
		w.Write([]byte(script))
	})
	mux.HandleFunc("/api/whoami", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"app":        *name,
			"instance":   instance,
			"method":     r.Method,
			"path":       r.URL.Path,
			"host":       r.Host,
			"request_id": r.Header.Get("X-Request-Id"),
		})
	})

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Info("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.RequestURI()),
			slog.String("referer", r.Referer()),
			slog.String("request_id", r.Header.Get("X-Request-Id")))
		mux.ServeHTTP(w, r)
	})

	addr := fmt.Sprintf("127.0.0.1:%d", *port)
	log.Info("starting demo backend", slog.String("addr", addr))
	if err := http.ListenAndServe(addr, handler); err != nil {
		log.Error("server failed", slog.Any("err", err))
		os.Exit(1)
	}
}
