package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log"
	"log/syslog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/audiovook/audiovook-server/admin"
	"github.com/audiovook/audiovook-server/api"
	"github.com/audiovook/audiovook-server/database"
	"github.com/audiovook/audiovook-server/imageresize"
	"github.com/audiovook/audiovook-server/lending"
	"github.com/audiovook/audiovook-server/search"
	"github.com/audiovook/audiovook-server/signurl"
)

type cfgMain struct {
	Listen cfgListen
	// Dbfile is the sqlite database path.
	Dbfile string
	// AbsHost is the streaming host signed URLs point at.
	AbsHost string
	// SecretKey signs bearer tokens and playback URLs.
	SecretKey string
	// UrlTtlHours is the signed URL validity window.
	UrlTtlHours int
	// Coversdir holds uploaded title cover art.
	Coversdir string
	// Cachedir holds resized cover variants.
	Cachedir string
	Logfile  string
}

type cfgListen struct {
	Port    int
	TlsCert string
	TlsKey  string
}

// loadConfig reads settings from a .env file if present, the process
// environment, and command line flags, in increasing precedence.
func loadConfig() (*cfgMain, error) {
	// .env is optional, the environment wins over it
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetConfigName("audiovook-server")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	// config file is optional
	_ = v.ReadInConfig()
	v.SetDefault("PORT", 8080)
	v.SetDefault("DB_FILE", "audiovook.db")
	v.SetDefault("ABS_HOST", "localhost:13378")
	v.SetDefault("URL_TTL_HOURS", 4)
	v.SetDefault("COVERS_DIR", "covers")
	v.SetDefault("CACHE_DIR", "")
	v.SetDefault("LOGFILE", "")
	v.SetDefault("TLS_CERT", "")
	v.SetDefault("TLS_KEY", "")

	pflag.Int("port", v.GetInt("PORT"), "Port to listen on.")
	pflag.String("dbfile", v.GetString("DB_FILE"), "Path of the sqlite database.")
	pflag.String("logfile", v.GetString("LOGFILE"),
		"Path of logfile. Use 'syslog' for syslog, 'stdout' "+
			"for standard output, or 'none' to disable logging.")
	pflag.Parse()
	if err := v.BindPFlags(pflag.CommandLine); err != nil {
		return nil, err
	}

	config := cfgMain{
		Listen: cfgListen{
			Port:    v.GetInt("port"),
			TlsCert: v.GetString("TLS_CERT"),
			TlsKey:  v.GetString("TLS_KEY"),
		},
		Dbfile:      v.GetString("dbfile"),
		AbsHost:     v.GetString("ABS_HOST"),
		SecretKey:   v.GetString("SECRET_KEY"),
		UrlTtlHours: v.GetInt("URL_TTL_HOURS"),
		Coversdir:   v.GetString("COVERS_DIR"),
		Cachedir:    v.GetString("CACHE_DIR"),
		Logfile:     v.GetString("logfile"),
	}
	if config.SecretKey == "" {
		return nil, fmt.Errorf("SECRET_KEY must be set")
	}
	return &config, nil
}

func main() {
	config, err := loadConfig()
	if err != nil {
		log.Fatalf("config: %s", err)
	}

	switch config.Logfile {
	case "syslog":
		logw, err := syslog.New(syslog.LOG_NOTICE, "audiovook")
		if err != nil {
			log.Fatalf("error opening syslog: %v", err)
		}
		log.SetOutput(logw)
	case "none":
		log.SetOutput(io.Discard)
	case "":
		fallthrough
	case "stdout":
	default:
		f, err := os.OpenFile(config.Logfile,
			os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			log.Fatalf("error opening file: %v", err)
		}
		defer f.Close()
		log.SetOutput(f)
	}

	db, err := database.New(&database.Options{
		Filename: config.Dbfile,
	})
	if err != nil {
		log.Fatalf("database.New: %s", err)
	}
	db.StartBackgroundJobs(context.Background())

	signer := signurl.New(&signurl.Options{
		Host:   config.AbsHost,
		Secret: config.SecretKey,
		TTL:    time.Duration(config.UrlTtlHours) * time.Hour,
	})

	lender := lending.New(&lending.Options{
		Repo:   db,
		Signer: signer,
	})

	idx, err := search.New()
	if err != nil {
		log.Fatalf("search.New: %s", err)
	}
	titles, err := db.ListTitles(context.Background(), false)
	if err != nil {
		log.Fatalf("loading titles: %s", err)
	}
	if err := idx.IndexTitles(context.Background(), titles); err != nil {
		log.Fatalf("indexing titles: %s", err)
	}

	resizer := imageresize.New(imageresize.Options{
		Cachedir: config.Cachedir,
	})

	r := mux.NewRouter()

	a := api.New(&api.Options{
		Repo:         db,
		Lending:      lender,
		Signer:       signer,
		TokenSecret:  config.SecretKey,
		CoversDir:    config.Coversdir,
		Imageresizer: resizer,
	})
	a.RegisterHandlers(r)

	adm := admin.New(&admin.Options{
		Repo:        db,
		Search:      idx,
		TokenSecret: config.SecretKey,
		CoversDir:   config.Coversdir,
	})
	adm.RegisterHandlers(r)

	server := HttpLog(r)
	addr := fmt.Sprintf(":%d", config.Listen.Port)

	if config.Listen.TlsCert != "" && config.Listen.TlsKey != "" {
		kpr, err := NewKeypairReloader(config.Listen.TlsCert, config.Listen.TlsKey)
		if err != nil {
			log.Fatalf("error loading keypair: %v", err)
		}

		srv := &http.Server{
			Addr:    addr,
			Handler: server,
			TLSConfig: &tls.Config{
				MinVersion:     tls.VersionTLS13,
				GetCertificate: kpr.GetCertificateFunc(),
			},
		}
		log.Printf("Serving HTTPS on %s", addr)
		log.Fatal(srv.ListenAndServeTLS("", ""))
	} else {
		log.Printf("Serving HTTP on %s", addr)
		log.Fatal(http.ListenAndServe(addr, server))
	}
}

type keypairReloader struct {
	certMu   sync.RWMutex
	cert     *tls.Certificate
	certPath string
	keyPath  string
}

// NewKeypairReloader creates a new keypair reloader that will reload the TLS certificate
// and key from the specified paths every 15 seconds. If the certificate cannot be loaded,
// it will log an error and keep the old certificate in use.
func NewKeypairReloader(certPath, keyPath string) (*keypairReloader, error) {
	result := &keypairReloader{
		certPath: certPath,
		keyPath:  keyPath,
	}
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, err
	}
	result.cert = &cert

	go func() {
		for {
			time.Sleep(15 * time.Second)
			if err := result.maybeReload(); err != nil {
				log.Printf("Keeping old TLS certificate because the new one could not be loaded: %v", err)
			}
		}
	}()
	return result, nil
}

func (kpr *keypairReloader) GetCertificateFunc() func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	return func(clientHello *tls.ClientHelloInfo) (*tls.Certificate, error) {
		kpr.certMu.RLock()
		defer kpr.certMu.RUnlock()
		return kpr.cert, nil
	}
}

func (kpr *keypairReloader) maybeReload() error {
	newCert, err := tls.LoadX509KeyPair(kpr.certPath, kpr.keyPath)
	if err != nil {
		return err
	}
	kpr.certMu.Lock()
	defer kpr.certMu.Unlock()
	kpr.cert = &newCert
	return nil
}
