// Standalone mock camera for testing the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockserver
//
// Then in another terminal:
//
//	go run ./cmd/snapview serve -c example/snapview.yaml
package main

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"
)

func main() {
	fmt.Println("Mock camera starting on :9999")
	fmt.Println("Snapshot: http://localhost:9999/image/jpeg.cgi (basic auth admin/admin)")
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	var frames atomic.Int64

	http.HandleFunc("/image/jpeg.cgi", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "admin" || pass != "admin" {
			w.Header().Set("WWW-Authenticate", `Basic realm="camera"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		n := frames.Add(1)
		img := image.NewGray(image.Rect(0, 0, 160, 90))
		for x := 0; x < 160; x++ {
			for y := 0; y < 90; y++ {
				img.SetGray(x, y, color.Gray{Y: uint8((int64(x) + n*4) % 256)})
			}
		}

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, nil); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write(buf.Bytes())
	})

	if err := http.ListenAndServe(":9999", nil); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
