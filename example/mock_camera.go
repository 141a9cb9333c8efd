package main

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"log/slog"
	"math/rand"
	"net/http"
	"sync/atomic"
	"time"
)

// StartMockCamera runs a fake IP camera with a snapshot endpoint that draws
// a new frame on every request. It also exposes the usual failure modes:
//
//	/image/jpeg.cgi  fresh frame, offline for 5s out of every 45s
//	/auth/jpeg.cgi   same frame behind basic auth (admin / admin)
//	/slow/jpeg.cgi   frame after a 0.5-2.5s delay, so results overlap
//	/login           an HTML login page instead of an image
//
// Call this in a goroutine before starting the viewer.
func StartMockCamera(addr string) {
	var frames atomic.Int64
	started := time.Now()

	snapshot := func(w http.ResponseWriter, r *http.Request) {
		if elapsed := time.Since(started) % (45 * time.Second); elapsed > 40*time.Second {
			http.Error(w, "camera offline", http.StatusServiceUnavailable)
			return
		}
		n := frames.Add(1)
		body, err := drawFrame(n)
		if err != nil {
			slog.Error("failed to encode frame", "error", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write(body)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/image/jpeg.cgi", snapshot)
	mux.HandleFunc("/auth/jpeg.cgi", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "admin" || pass != "admin" {
			w.Header().Set("WWW-Authenticate", `Basic realm="camera"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		snapshot(w, r)
	})
	mux.HandleFunc("/slow/jpeg.cgi", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Duration(500+rand.Intn(2000)) * time.Millisecond):
			snapshot(w, r)
		case <-r.Context().Done():
		}
	})
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><body><form><input name="user"><input name="pass" type="password"></form></body></html>`))
	})

	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("mock camera error", "error", err)
	}
}

// drawFrame renders a gradient with a bar whose position follows the frame
// number, so consecutive snapshots are visibly different.
func drawFrame(n int64) ([]byte, error) {
	const w, h = 320, 180
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	bar := int(n*8) % w
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 96, A: 255}
			if x >= bar && x < bar+12 {
				c = color.RGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.Set(x, y, c)
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 70}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
