// Command panelcli exercises the panel client core from a terminal:
// sign in, inspect the profile, and stream live notifications.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"esnafpanel-core/internal/api"
	"esnafpanel-core/internal/config"
	"esnafpanel-core/internal/model"
	"esnafpanel-core/internal/notify"
	"esnafpanel-core/internal/realtime"
	"esnafpanel-core/internal/session"
)

func usage() {
	fmt.Fprintln(os.Stderr, `usage: panelcli <command> [flags]

commands:
  login     -email -sifre
  register  -email -sifre -ad -soyad [-telefon]
  logout
  profile
  listen`)
	os.Exit(2)
}

type deps struct {
	cfg    config.ClientConfig
	store  *session.Store
	client *api.Client
	log    *zap.Logger
}

func buildDeps() *deps {
	logger := zap.NewNop()
	if os.Getenv("PANEL_DEBUG") == "1" {
		logger, _ = zap.NewDevelopment()
	}

	cfg := config.LoadClientConfig()
	statePath := cfg.StatePath
	if statePath == "" {
		statePath = session.DefaultStatePath()
	}

	store := session.NewStore(session.NewFileStorage(statePath), logger)
	client := api.NewClient(cfg.APIBaseURL, logger)
	client.BindSession(store)
	client.SetOnSessionExpired(func() {
		fmt.Fprintln(os.Stderr, "Oturum süresi doldu, lütfen tekrar giriş yapın.")
	})
	store.BindAPI(client)
	store.Rehydrate()

	return &deps{cfg: cfg, store: store, client: client, log: logger}
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	d := buildDeps()
	ctx := context.Background()

	switch os.Args[1] {
	case "login":
		fs := flag.NewFlagSet("login", flag.ExitOnError)
		email := fs.String("email", "", "e-posta")
		sifre := fs.String("sifre", "", "şifre")
		_ = fs.Parse(os.Args[2:])
		if *email == "" || *sifre == "" {
			fs.Usage()
			os.Exit(2)
		}
		if err := d.store.Login(ctx, *email, *sifre); err != nil {
			fmt.Fprintln(os.Stderr, "Giriş başarısız:", d.store.LastError())
			os.Exit(1)
		}
		fmt.Printf("Hoş geldiniz, %s\n", d.store.CurrentUser().FullName())

	case "register":
		fs := flag.NewFlagSet("register", flag.ExitOnError)
		email := fs.String("email", "", "e-posta")
		sifre := fs.String("sifre", "", "şifre")
		ad := fs.String("ad", "", "ad")
		soyad := fs.String("soyad", "", "soyad")
		telefon := fs.String("telefon", "", "telefon")
		_ = fs.Parse(os.Args[2:])
		if *email == "" || *sifre == "" {
			fs.Usage()
			os.Exit(2)
		}
		in := model.RegisterInput{Email: *email, Sifre: *sifre, Ad: *ad, Soyad: *soyad, Telefon: *telefon}
		if err := d.store.Register(ctx, in); err != nil {
			fmt.Fprintln(os.Stderr, "Kayıt başarısız:", d.store.LastError())
			os.Exit(1)
		}
		fmt.Printf("Kayıt tamamlandı: %s\n", d.store.CurrentUser().Email)

	case "logout":
		d.store.Logout(ctx)
		fmt.Println("Çıkış yapıldı.")

	case "profile":
		if !d.store.IsAuthenticated() {
			fmt.Fprintln(os.Stderr, "Önce giriş yapın.")
			os.Exit(1)
		}
		d.store.ReloadProfile(ctx)
		u := d.store.CurrentUser()
		fmt.Printf("%s <%s>\n", u.FullName(), u.Email)
		if u.Telefon != "" {
			fmt.Println("Telefon:", u.Telefon)
		}
		if u.Rol != "" {
			fmt.Println("Rol:", u.Rol)
		}

	case "listen":
		if !d.store.IsAuthenticated() {
			fmt.Fprintln(os.Stderr, "Önce giriş yapın.")
			os.Exit(1)
		}
		listen(d)

	default:
		usage()
	}
}

func listen(d *deps) {
	center := notify.NewCenter()
	seen := 0
	center.SetOnChange(func() {
		items := center.Items()
		if len(items) > seen {
			n := items[0]
			fmt.Printf("[%s] %s: %s (okunmamış: %d)\n", n.Severity, n.Title, n.Message, center.Unread())
		}
		seen = len(items)
	})

	rt := realtime.NewClient(realtime.Options{
		URL:    d.cfg.SocketURL,
		Token:  d.store.AccessToken,
		Center: center,
		Logger: d.log,
		OnStateChange: func(s realtime.State) {
			fmt.Fprintln(os.Stderr, "bağlantı:", s)
		},
	})
	if err := rt.Connect(); err != nil {
		fmt.Fprintln(os.Stderr, "Bağlantı açılamadı:", err)
		os.Exit(1)
	}
	defer rt.Close()

	rt.Subscribe(realtime.Subscription{Topic: realtime.TopicNotifications})
	rt.Subscribe(realtime.Subscription{Topic: realtime.TopicInvoices})
	rt.Subscribe(realtime.Subscription{Topic: realtime.TopicPayments})

	// Surface a dead channel instead of waiting silently.
	go func() {
		for {
			time.Sleep(5 * time.Second)
			if rt.State() == realtime.StateFailed {
				fmt.Fprintln(os.Stderr, "Bağlantı kurulamadı; panelcli listen ile tekrar deneyin.")
				os.Exit(1)
			}
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}
