package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/antibyte/retrobasic/pkg/auth"
	"github.com/antibyte/retrobasic/pkg/configuration"
	"github.com/antibyte/retrobasic/pkg/console"
	"github.com/antibyte/retrobasic/pkg/logger"
	"github.com/antibyte/retrobasic/pkg/programstore"
	"github.com/antibyte/retrobasic/pkg/session"
	"github.com/antibyte/retrobasic/pkg/shared"
	"github.com/antibyte/retrobasic/pkg/terminal"
	"github.com/antibyte/retrobasic/pkg/tinybasic"
	tlsmanager "github.com/antibyte/retrobasic/pkg/tls"
)

// Version is shown in the banner.
const Version = "1.0"

func main() {
	configPath := flag.String("config", "settings.cfg", "path to the configuration file")
	consoleMode := flag.Bool("console", false, "run a single interpreter on this terminal")
	hashPassword := flag.String("hash-password", "", "print the bcrypt hash for [Security] access_password_hash and exit")
	genCert := flag.String("gen-cert", "", "write a self-signed certificate for the given host to [TLS] cert_file/key_file and exit")
	flag.Parse()

	if *hashPassword != "" {
		hash, err := auth.HashPassword(*hashPassword)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error hashing password: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	// Initialize configuration (before all other initializations)
	if err := configuration.Initialize(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing configuration: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()
	logger.ConfigInfo("System started - Configuration loaded from: %s", *configPath)

	if *genCert != "" {
		tm, err := tlsmanager.NewTLSManagerWithConfig(withoutTLS(tlsmanager.ConfigFromSettings()))
		if err == nil {
			err = tm.GenerateSelfSignedCert([]string{*genCert}, 365*24*time.Hour)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error generating certificate: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Certificate written.")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	var db *programstore.DB
	if configuration.GetBool("Storage", "enable_persistence", false) {
		var err error
		db, err = programstore.Open(configuration.GetString("Storage", "db_path", "retrobasic.db"))
		if err != nil {
			logger.Fatal(logger.AreaDatabase, "Database initialization failed: %v", err)
		}
		defer db.Close()
	}

	prompts, err := shared.NewPromptManager(configuration.GetString("Interpreter", "banner", ""), Version)
	if err != nil {
		logger.Fatal(logger.AreaGeneral, "Error initializing PromptManager: %v", err)
	}

	if *consoleMode || configuration.GetBool("Server", "enable_console", false) {
		opts := tinybasic.ConfigOptions()
		if db != nil {
			opts = append(opts, tinybasic.WithProgramStore(db.Store("console")))
		}
		if err := console.New(os.Stdin, os.Stdout, prompts, opts...).Run(ctx); err != nil {
			logger.Error(logger.AreaConsole, "console stopped: %v", err)
			os.Exit(1)
		}
		return
	}

	// SIGINT beendet im Servermodus ebenfalls
	ctx, stopInt := signal.NotifyContext(ctx, os.Interrupt)
	defer stopInt()

	mgr := session.NewManager(session.LimitsFromConfig(), db, prompts)
	go mgr.Run(ctx)

	tlsManager, err := tlsmanager.NewTLSManager()
	if err != nil {
		logger.Fatal(logger.AreaTLS, "TLS manager initialization failed: %v", err)
	}

	if err := serve(ctx, newMux(mgr, configuration.GetString("Server", "static_dir", "")), tlsManager); err != nil {
		logger.Error(logger.AreaGeneral, "server stopped: %v", err)
		os.Exit(1)
	}
	logger.Info(logger.AreaGeneral, "server shut down")
}

// withoutTLS lets the certificate generator run before the files exist.
func withoutTLS(c *tlsmanager.TLSConfig) *tlsmanager.TLSConfig {
	c.EnableTLS = false
	return c
}

// newMux registriert alle HTTP-Routen
func newMux(mgr *session.Manager, staticDir string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/session", auth.HandleCreateSession(mgr))
	mux.HandleFunc("/api/logout", auth.RequireSessionToken(auth.HandleLogout(mgr)))
	mux.HandleFunc("/ws", terminal.NewHandler(mgr).HandleWebSocket)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprintf(w, "ok %d sessions\n", mgr.Count())
	})

	if staticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(staticDir)))
	} else {
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		})
	}
	return mux
}

// serve runs the HTTP or HTTPS servers until ctx ends.
func serve(ctx context.Context, handler http.Handler, tlsManager *tlsmanager.TLSManager) error {
	var servers []*http.Server
	errorChan := make(chan error, 2)

	start := func(srv *http.Server, useTLS bool) {
		servers = append(servers, srv)
		go func() {
			var err error
			if useTLS {
				err = srv.ListenAndServeTLS("", "")
			} else {
				err = srv.ListenAndServe()
			}
			if !errors.Is(err, http.ErrServerClosed) {
				errorChan <- fmt.Errorf("%s: %w", srv.Addr, err)
			}
		}()
	}

	if tlsManager.IsEnabled() {
		httpsAddr := ":" + tlsManager.GetHTTPSPort()
		logger.Info(logger.AreaTLS, "Starting HTTPS server on %s", httpsAddr)
		start(&http.Server{Addr: httpsAddr, Handler: handler, TLSConfig: tlsManager.GetTLSConfig()}, true)

		if tlsManager.NeedsHTTPServer() {
			httpAddr := ":" + tlsManager.GetHTTPPort()
			logger.Info(logger.AreaTLS, "Starting HTTP server for challenges/redirects on %s", httpAddr)
			start(&http.Server{Addr: httpAddr, Handler: tlsManager.GetHTTPHandler()}, false)
		}
	} else {
		addr := configuration.GetString("Server", "listen_addr", ":8080")
		logger.Info(logger.AreaGeneral, "Starting HTTP server on %s", addr)
		start(&http.Server{Addr: addr, Handler: handler}, false)
	}

	var runErr error
	select {
	case runErr = <-errorChan:
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn(logger.AreaGeneral, "shutdown of %s: %v", srv.Addr, err)
		}
	}
	return runErr
}
