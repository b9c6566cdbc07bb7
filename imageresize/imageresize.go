// Package imageresize serves cover art, resized on demand and cached on
// disk so each size is only computed once.
package imageresize

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"strconv"
	"sync"
	"syscall"

	"github.com/disintegration/imaging"
)

type Options struct {
	// Cachedir holds resized variants. Empty disables caching.
	Cachedir string
}

type Resizer struct {
	cachedir           string
	tmpExt             string
	resizeMutexMap     map[string]*sync.Mutex
	resizeMutexMapLock sync.Mutex
}

func New(o Options) *Resizer {
	return &Resizer{
		cachedir:       o.Cachedir,
		resizeMutexMap: make(map[string]*sync.Mutex),
		tmpExt:         fmt.Sprintf(".%d", os.Getpid()),
	}
}

func param2int(r *http.Request, param string) int {
	v, _ := strconv.Atoi(r.URL.Query().Get(param))
	if v < 0 {
		return 0
	}
	return v
}

// cacheName derives a cache key from the file's device and inode, so a
// replaced cover invalidates naturally.
func cacheName(file http.File) string {
	fi, err := file.Stat()
	if err != nil {
		return ""
	}
	stat, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return ""
	}
	return fmt.Sprintf("%08x.%016x", stat.Dev, stat.Ino)
}

// cacheRead returns a cached resized variant, if present.
func (r *Resizer) cacheRead(file http.File, w, h, q int) http.File {
	if r.cachedir == "" {
		return nil
	}
	cn := cacheName(file)
	if cn == "" {
		return nil
	}
	fh, err := os.Open(fmt.Sprintf("%s/%s:%dx%dq=%d", r.cachedir, cn, w, h, q))
	if err != nil {
		return nil
	}
	return fh
}

// cacheWrite stores a resized variant, written via a temp file and
// renamed into place.
func (r *Resizer) cacheWrite(file http.File, blob []byte, w, h, q int) {
	if r.cachedir == "" {
		return
	}
	cn := cacheName(file)
	if cn == "" {
		return
	}
	fn := fmt.Sprintf("%s/%s:%dx%dq=%d", r.cachedir, cn, w, h, q)
	tmp := fn + r.tmpExt
	if err := os.WriteFile(tmp, blob, 0666); err != nil {
		return
	}
	if err := os.Rename(tmp, fn); err != nil {
		os.Remove(tmp)
	}
}

// ServeResized writes the image to the client, resized to the width /
// height / quality query parameters. Without parameters the original
// file is served as-is.
func (r *Resizer) ServeResized(w http.ResponseWriter, rq *http.Request, file http.File) {
	width := param2int(rq, "width")
	height := param2int(rq, "height")
	quality := param2int(rq, "quality")
	if quality == 0 || quality > 100 {
		quality = 90
	}

	w.Header().Set("Content-Type", "image/jpeg")

	if width == 0 && height == 0 {
		io.Copy(w, file)
		return
	}

	if cached := r.cacheRead(file, width, height, quality); cached != nil {
		defer cached.Close()
		io.Copy(w, cached)
		return
	}

	// one resize at a time per source file
	key := cacheName(file)
	r.resizeMutexMapLock.Lock()
	m, ok := r.resizeMutexMap[key]
	if !ok {
		m = &sync.Mutex{}
		r.resizeMutexMap[key] = m
	}
	r.resizeMutexMapLock.Unlock()
	m.Lock()
	defer m.Unlock()

	img, _, err := image.Decode(file)
	if err != nil {
		http.Error(w, "unreadable image", http.StatusInternalServerError)
		return
	}
	img = imaging.Fit(img, pickDimension(width), pickDimension(height), imaging.Lanczos)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		http.Error(w, "encoding failed", http.StatusInternalServerError)
		return
	}

	r.cacheWrite(file, buf.Bytes(), width, height, quality)
	w.Write(buf.Bytes())
}

// pickDimension substitutes a large bound when only one dimension was
// requested, so imaging.Fit preserves the aspect ratio.
func pickDimension(v int) int {
	if v == 0 {
		return 4096
	}
	return v
}
