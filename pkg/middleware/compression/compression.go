// Package compression encodes response bodies with brotli or gzip.
package compression

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/nimburion/apimate/pkg/server/router"
)

// Config configures response compression.
type Config struct {
	Enabled     bool
	GzipLevel   int
	BrotliLevel int
	// MinSize is the body size below which responses are sent as is.
	MinSize int
	// CompressibleContentTypes are content type prefixes eligible for
	// compression. A response without a content type is eligible.
	CompressibleContentTypes []string
	ExcludedPathPrefixes     []string
}

// DefaultConfig compresses JSON and text bodies of 1 KiB or more.
func DefaultConfig() Config {
	return Config{
		Enabled:                  true,
		GzipLevel:                gzip.DefaultCompression,
		BrotliLevel:              4,
		MinSize:                  1024,
		CompressibleContentTypes: []string{"application/json", "text/"},
	}
}

type encoder struct {
	name string
	wrap func(w io.Writer, cfg Config) (io.WriteCloser, error)
}

// encoders in order of preference at equal quality.
var encoders = []encoder{
	{name: "br", wrap: func(w io.Writer, cfg Config) (io.WriteCloser, error) {
		return brotli.NewWriterLevel(w, cfg.BrotliLevel), nil
	}},
	{name: "gzip", wrap: func(w io.Writer, cfg Config) (io.WriteCloser, error) {
		return gzip.NewWriterLevel(w, cfg.GzipLevel)
	}},
}

// Middleware negotiates Accept-Encoding and swaps the response writer for a
// compressing one. HEAD requests, excluded paths, small bodies and other
// content types pass through unchanged.
func Middleware(cfg Config) router.MiddlewareFunc {
	def := DefaultConfig()
	if cfg.BrotliLevel <= 0 {
		cfg.BrotliLevel = def.BrotliLevel
	}
	if cfg.GzipLevel == 0 {
		cfg.GzipLevel = def.GzipLevel
	}
	if len(cfg.CompressibleContentTypes) == 0 {
		cfg.CompressibleContentTypes = def.CompressibleContentTypes
	}

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			req := c.Request()
			if !cfg.Enabled || req.Method == http.MethodHead || hasPrefix(req.URL.Path, cfg.ExcludedPathPrefixes) {
				return next(c)
			}
			enc, ok := negotiate(req.Header.Get("Accept-Encoding"))
			if !ok {
				return next(c)
			}

			base := c.Response()
			addVary(base.Header(), "Accept-Encoding")
			w := &writer{ResponseWriter: base, enc: enc, cfg: cfg}
			c.SetResponse(w)
			defer c.SetResponse(base)

			err := next(c)
			if cerr := w.Close(); err == nil {
				err = cerr
			}
			return err
		}
	}
}

func negotiateEncoding(header string) string {
	if enc, ok := negotiate(header); ok {
		return enc.name
	}
	return ""
}

// negotiate picks the encoder with the highest quality. "*" stands for any
// encoder not listed explicitly; q=0 refuses one.
func negotiate(header string) (encoder, bool) {
	q := acceptedQualities(header)
	best, bestQ := encoder{}, 0.0
	for _, enc := range encoders {
		quality, listed := q[enc.name]
		if !listed {
			quality = q["*"]
		}
		if quality > bestQ {
			best, bestQ = enc, quality
		}
	}
	return best, bestQ > 0
}

func acceptedQualities(header string) map[string]float64 {
	q := make(map[string]float64)
	for part := range strings.SplitSeq(header, ",") {
		name, params, _ := strings.Cut(part, ";")
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		quality := 1.0
		for param := range strings.SplitSeq(params, ";") {
			key, value, found := strings.Cut(strings.TrimSpace(param), "=")
			if !found || !strings.EqualFold(key, "q") {
				continue
			}
			if v, err := strconv.ParseFloat(value, 64); err == nil {
				quality = v
			}
		}
		q[name] = quality
	}
	return q
}

func hasPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func addVary(h http.Header, value string) {
	for _, line := range h.Values("Vary") {
		for v := range strings.SplitSeq(line, ",") {
			if strings.EqualFold(strings.TrimSpace(v), value) {
				return
			}
		}
	}
	h.Add("Vary", value)
}

// writer holds the body back until MinSize bytes arrive or the handler
// returns, then either starts the encoder or writes through.
type writer struct {
	router.ResponseWriter
	enc encoder
	cfg Config

	status  int
	pending bytes.Buffer
	out     io.Writer
	closer  io.Closer
}

func (w *writer) WriteHeader(code int) {
	if w.status != 0 {
		return
	}
	w.status = code
	if code == http.StatusNoContent || code == http.StatusNotModified || code < 200 {
		w.out = w.ResponseWriter
		w.ResponseWriter.WriteHeader(code)
	}
}

func (w *writer) Write(p []byte) (int, error) {
	w.WriteHeader(http.StatusOK)
	if w.out != nil {
		if _, err := w.out.Write(p); err != nil {
			return 0, err
		}
		return len(p), nil
	}
	w.pending.Write(p)
	if w.pending.Len() >= w.cfg.MinSize {
		if err := w.start(); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// start commits the headers and drains the pending bytes.
func (w *writer) start() error {
	h := w.Header()
	w.out = w.ResponseWriter
	if w.pending.Len() >= w.cfg.MinSize && h.Get("Content-Encoding") == "" &&
		compressible(h.Get("Content-Type"), w.cfg.CompressibleContentTypes) {
		h.Del("Content-Length")
		h.Set("Content-Encoding", w.enc.name)
		ew, err := w.enc.wrap(w.ResponseWriter, w.cfg)
		if err != nil {
			return err
		}
		w.out, w.closer = ew, ew
	}
	w.ResponseWriter.WriteHeader(w.status)
	if w.pending.Len() == 0 {
		return nil
	}
	_, err := w.out.Write(w.pending.Bytes())
	w.pending.Reset()
	return err
}

// Close flushes the response. One nothing was written to is left for the
// router to answer.
func (w *writer) Close() error {
	if w.status == 0 {
		return nil
	}
	if w.out == nil {
		if err := w.start(); err != nil {
			return err
		}
	}
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}

func (w *writer) Status() int {
	if w.status == 0 {
		return w.ResponseWriter.Status()
	}
	return w.status
}

func (w *writer) Written() bool {
	return w.status != 0 || w.ResponseWriter.Written()
}

func compressible(contentType string, allow []string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if ct == "" {
		return true
	}
	for _, prefix := range allow {
		if strings.HasPrefix(ct, strings.ToLower(prefix)) {
			return true
		}
	}
	return false
}
