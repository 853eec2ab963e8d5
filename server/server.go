// Package server runs the FormFling HTTP(S) listeners: plain HTTP, HTTPS
// with Let's Encrypt (http-01), or HTTPS with certificate files. The HTTPS
// modes keep a companion server on http_port for redirects and ACME.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/dalemusser/formfling/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/crypto/acme/autocert"
)

// Mode is the serving mode selected from config.
type Mode string

const (
	ModeHTTP        Mode = "http"
	ModeLetsEncrypt Mode = "lets_encrypt"
	ModeManualTLS   Mode = "manual_tls"
)

// certWarmup bounds how long startup waits for the first ACME certificate.
const certWarmup = 60 * time.Second

// ModeOf reports which serving mode cfg selects.
func ModeOf(cfg *config.Config) Mode {
	switch {
	case !cfg.HTTP.UseHTTPS:
		return ModeHTTP
	case cfg.TLS.UseLetsEncrypt:
		return ModeLetsEncrypt
	default:
		return ModeManualTLS
	}
}

// WithShutdownSignals returns a context canceled on SIGINT or SIGTERM.
// The returned cancel function also stops signal delivery.
func WithShutdownSignals(parent context.Context, logger *zap.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigCh)
		select {
		case sig := <-sigCh:
			if logger != nil {
				logger.Info("shutdown signal received", zap.Stringer("signal", sig))
			}
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// bound holds what a mode set up before the primary server starts.
type bound struct {
	ln      net.Listener // what the primary server accepts on (TLS-wrapped in HTTPS modes)
	base    net.Listener // the TCP listener under ln
	aux     *http.Server // http_port companion; nil in ModeHTTP
	auxDone chan error   // nil without a companion, so its select case never fires
}

func (b bound) close() {
	if b.base != nil {
		_ = b.base.Close()
	}
}

// ListenAndServeWithContext serves handler in the mode cfg selects and blocks
// until ctx is canceled (graceful shutdown within shutdown_timeout) or a
// server fails. Routes are the caller's business.
func ListenAndServeWithContext(
	ctx context.Context,
	cfg *config.Config,
	handler http.Handler,
	logger *zap.Logger,
) error {
	if cfg == nil {
		return errors.New("server: cfg is nil")
	}
	if handler == nil {
		return errors.New("server: handler is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	srv := newHTTPServer(cfg, "", handler, logger)

	b, err := bind(ctx, cfg, srv, logger)
	if err != nil {
		return err
	}
	defer b.close()

	primaryDone := make(chan error, 1)
	go func() { primaryDone <- serveOn(srv, b.ln) }()

	return wait(ctx, cfg, srv, b, primaryDone, logger)
}

// bind opens the listeners for the configured mode. In the HTTPS modes the
// companion server starts here, since ACME needs it before the first
// certificate exists.
func bind(ctx context.Context, cfg *config.Config, srv *http.Server, logger *zap.Logger) (bound, error) {
	httpAddr := ":" + strconv.Itoa(cfg.HTTP.HTTPPort)
	httpsAddr := ":" + strconv.Itoa(cfg.HTTP.HTTPSPort)
	mode := ModeOf(cfg)

	if mode == ModeHTTP {
		ln, err := net.Listen("tcp", httpAddr)
		if err != nil {
			return bound{}, fmt.Errorf("listen http %s: %w", httpAddr, err)
		}
		logger.Info("HTTP server listening", zap.String("addr", ln.Addr().String()))
		return bound{ln: ln, base: ln}, nil
	}

	var (
		b      bound
		tlsCfg *tls.Config
	)
	redirect := httpRedirectHandler(cfg.HTTP.HTTPSPort)

	if mode == ModeLetsEncrypt {
		m := &autocert.Manager{
			Prompt:     autocert.AcceptTOS,
			HostPolicy: autocert.HostWhitelist(cfg.TLS.Domain),
			Cache:      autocert.DirCache(cfg.TLS.LetsEncryptCacheDir),
			Email:      cfg.TLS.LetsEncryptEmail,
		}
		b.startAux(newHTTPServer(cfg, httpAddr, m.HTTPHandler(redirect), logger))
		logger.Info("ACME + redirect server listening", zap.String("addr", httpAddr))

		if err := waitForCert(ctx, m, cfg.TLS.Domain, certWarmup); err != nil {
			logger.Warn("certificate not ready; early HTTPS clients may fail the handshake", zap.Error(err))
		}
		tlsCfg = &tls.Config{MinVersion: tls.VersionTLS12, GetCertificate: m.GetCertificate}
	} else {
		var err error
		if tlsCfg, err = manualTLSConfig(cfg, logger); err != nil {
			return bound{}, err
		}
		b.startAux(newHTTPServer(cfg, httpAddr, redirect, logger))
		logger.Info("HTTP → HTTPS redirect server listening", zap.String("addr", httpAddr))
	}
	srv.TLSConfig = tlsCfg

	base, err := net.Listen("tcp", httpsAddr)
	if err != nil {
		_ = shutdownAux(context.Background(), b.aux)
		return bound{}, fmt.Errorf("listen https %s: %w", httpsAddr, err)
	}
	logger.Info("HTTPS server listening",
		zap.String("addr", base.Addr().String()),
		zap.String("mode", string(mode)),
		zap.String("domain", cfg.TLS.Domain))

	b.base = base
	b.ln = tls.NewListener(base, tlsCfg)
	return b, nil
}

func (b *bound) startAux(aux *http.Server) {
	done := make(chan error, 1)
	b.aux, b.auxDone = aux, done
	go func() { done <- serveAux(aux) }()
}

func wait(
	ctx context.Context,
	cfg *config.Config,
	srv *http.Server,
	b bound,
	primaryDone <-chan error,
	logger *zap.Logger,
) error {
	auxDone := b.auxDone
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down server…")
			// ctx is already done, so shutdown gets a fresh window.
			sctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
			defer cancel()
			_ = shutdownAux(sctx, b.aux)
			if err := srv.Shutdown(sctx); err != nil {
				return fmt.Errorf("server shutdown: %w", err)
			}
			logger.Info("server stopped gracefully")
			return nil

		case err := <-primaryDone:
			_ = shutdownAux(context.Background(), b.aux)
			if err != nil {
				return fmt.Errorf("primary server error: %w", err)
			}
			return nil

		case err := <-auxDone:
			if err == nil {
				auxDone = nil
				b.aux = nil
				continue
			}
			if cerr := srv.Close(); cerr != nil {
				logger.Error("closing primary server after companion failure", zap.Error(cerr))
			}
			return fmt.Errorf("auxiliary server error: %w", err)
		}
	}
}

// newHTTPServer builds an http.Server with the configured timeouts and the
// stdlib error log routed into zap at Warn level.
func newHTTPServer(cfg *config.Config, addr string, h http.Handler, logger *zap.Logger) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}
	stdlog, err := zap.NewStdLogAt(logger, zapcore.WarnLevel)
	if err != nil {
		logger.Warn("stdlib error log not routed to zap", zap.Error(err))
		return srv
	}
	srv.ErrorLog = stdlog
	return srv
}

// manualTLSConfig validates and loads cert_file / key_file. A key readable by
// group or others is a warning in dev and an error in prod.
func manualTLSConfig(cfg *config.Config, logger *zap.Logger) (*tls.Config, error) {
	if cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "" {
		return nil, errors.New("use_https without Let's Encrypt needs cert_file and key_file")
	}

	if err := validateTLSFiles(cfg.TLS.CertFile, cfg.TLS.KeyFile); err != nil {
		if !errors.Is(err, errKeyPermissions) {
			return nil, err
		}
		if cfg.Env == "prod" {
			return nil, err
		}
		logger.Warn("TLS key permissions too open; this is an error in prod", zap.Error(err))
	}

	cert, err := tls.LoadX509KeyPair(cfg.TLS.CertFile, cfg.TLS.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load TLS cert/key: %w", err)
	}
	return &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
	}, nil
}

func serveOn(srv *http.Server, ln net.Listener) error {
	if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func serveAux(aux *http.Server) error {
	if err := aux.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func shutdownAux(ctx context.Context, aux *http.Server) error {
	if aux == nil {
		return nil
	}
	return aux.Shutdown(ctx)
}

// httpRedirectHandler sends every plain-HTTP request to the same host and
// path on https_port. Hosts and request targets carrying control characters
// are rejected so nothing unsafe reaches the Location header.
func httpRedirectHandler(httpsPort int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isValidHost(r.Host) {
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}
		target := r.URL.RequestURI()
		if !isValidRequestURI(target) {
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}
		http.Redirect(w, r, "https://"+redirectHost(r.Host, httpsPort)+target, http.StatusMovedPermanently)
	})
}

// redirectHost swaps any port on host for httpsPort, omitting it when 443.
func redirectHost(host string, httpsPort int) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	} else {
		host = strings.Trim(host, "[]")
	}
	if httpsPort == 0 || httpsPort == 443 {
		if strings.Contains(host, ":") {
			return "[" + host + "]"
		}
		return host
	}
	return net.JoinHostPort(host, strconv.Itoa(httpsPort))
}

func isValidRequestURI(uri string) bool {
	return !strings.ContainsFunc(uri, func(c rune) bool {
		return (c < 0x20 && c != '\t') || c == 0x7f
	})
}

func hasControl(s string) bool {
	return strings.ContainsFunc(s, func(c rune) bool { return c < 0x20 || c == 0x7f })
}

// isValidHost reports whether a Host header is safe to echo into a redirect:
// non-empty, a sane port if any, a parseable IP inside brackets, and no
// control characters, scheme or leading slash.
func isValidHost(host string) bool {
	if host == "" || strings.Contains(host, "://") || strings.HasPrefix(host, "/") {
		return false
	}

	name := host
	if h, port, err := net.SplitHostPort(host); err == nil {
		// A bare "::1" fails to split and is checked as a name below.
		name = h
		if n, perr := strconv.Atoi(port); perr != nil || n < 1 || n > 65535 {
			return false
		}
	}
	if name == "" || hasControl(name) {
		return false
	}

	if inner, ok := strings.CutPrefix(name, "["); ok {
		ip, ok := strings.CutSuffix(inner, "]")
		if !ok || ip == "" {
			return false
		}
		ip, _, _ = strings.Cut(ip, "%")
		return net.ParseIP(ip) != nil
	}
	return true
}

var errKeyPermissions = errors.New("TLS key file has overly permissive permissions")

// statRegular returns the FileInfo for a TLS file, rejecting directories.
func statRegular(kind, path string) (fs.FileInfo, error) {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("TLS %s file does not exist: %s", kind, path)
	case err != nil:
		return nil, fmt.Errorf("cannot access TLS %s file %s: %w", kind, path, err)
	case info.IsDir():
		return nil, fmt.Errorf("TLS %s path is a directory: %s", kind, path)
	}
	return info, nil
}

// validateTLSFiles checks both files exist and the key is private to its
// owner. Windows file modes carry no Unix permission bits and are skipped.
func validateTLSFiles(certFile, keyFile string) error {
	if _, err := statRegular("certificate", certFile); err != nil {
		return err
	}
	keyInfo, err := statRegular("key", keyFile)
	if err != nil {
		return err
	}
	if perm := keyInfo.Mode().Perm(); runtime.GOOS != "windows" && perm&0o077 != 0 {
		return fmt.Errorf("%w: %s has mode %o (want 0600)", errKeyPermissions, keyFile, perm)
	}
	return nil
}

// waitForCert polls autocert until a certificate for host is cached, ctx is
// done, or timeout passes.
func waitForCert(ctx context.Context, m *autocert.Manager, host string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tick := time.NewTicker(time.Second)
	defer tick.Stop()

	hello := &tls.ClientHelloInfo{ServerName: host}
	for {
		_, err := m.GetCertificate(hello)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("certificate for %q: %w (last error: %v)", host, ctx.Err(), err)
		case <-tick.C:
		}
	}
}
