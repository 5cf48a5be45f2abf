package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"

	mem "clearspace/adapters/memory"
	ws "clearspace/adapters/websocket"
	"clearspace/core"
	"clearspace/engine"
	"clearspace/progress"
	"clearspace/realtime"
)

// A minimal dependency-free demo: in-memory storage, default catalogs,
// and a handful of routes to poke at with curl.
func main() {
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(textHandler))

	ctx := context.Background()
	hub := realtime.NewHub()
	svc := progress.New(
		progress.WithStorage(mem.New()),
		progress.WithRealtime(hub),
		progress.WithDispatchMode(engine.DispatchAsync),
	)

	http.Handle("/ws", ws.Handler(hub))
	http.HandleFunc("/users/", func(w http.ResponseWriter, r *http.Request) {
		// routes: POST /users/{id}/tasks/{taskID}?difficulty=easy&category=kitchen
		//         POST /users/{id}/articles/{articleID}?minutes=6
		//         GET  /users/{id}
		parts := split(r.URL.Path, '/')
		if len(parts) < 2 {
			http.NotFound(w, r)
			return
		}
		user := core.UserID(parts[1])
		switch r.Method {
		case http.MethodPost:
			if len(parts) >= 4 && parts[2] == "tasks" {
				task := core.Task{
					ID:         parts[3],
					Difficulty: core.Difficulty(r.URL.Query().Get("difficulty")),
					Category:   r.URL.Query().Get("category"),
				}
				res, err := svc.CompleteTask(ctx, user, task)
				writeJSON(w, map[string]any{"result": res, "err": errString(err)})
				return
			}
			if len(parts) >= 4 && parts[2] == "articles" {
				article := core.Article{ID: parts[3], ReadMinutes: core.ParseReadTime(r.URL.Query().Get("minutes") + " min")}
				res, err := svc.ReadArticle(ctx, user, article)
				writeJSON(w, map[string]any{"result": res, "err": errString(err)})
				return
			}
		case http.MethodGet:
			stats, err := svc.Stats(ctx, user)
			if err != nil {
				http.Error(w, err.Error(), 500)
				return
			}
			writeJSON(w, stats)
			return
		}
		http.NotFound(w, r)
	})

	slog.Info("starting demo server on :8080")

	if err := http.ListenAndServe(":8080", nil); err != nil {
		slog.Error("demo server crashed", "error", err)
		os.Exit(1)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func errString(err error) any {
	if err == nil {
		return nil
	}
	return err.Error()
}

func split(p string, sep rune) []string {
	var parts []string
	current := make([]rune, 0, len(p))

	for _, r := range p {
		if r == sep {
			if len(current) > 0 {
				parts = append(parts, string(current))
				current = current[:0]
			}
			continue
		}
		current = append(current, r)
	}

	if len(current) > 0 {
		parts = append(parts, string(current))
	}

	return parts
}
