package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"boardsync/internal/export"
	boardnet "boardsync/internal/net"
	"boardsync/internal/session"
	"boardsync/internal/store"
)

const defaultPort = 8888

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "join":
		runJoin(os.Args[2:])
	case "browse":
		runBrowse()
	default:
		// A bare share link joins directly, so the binary can be the
		// handler for boardsync:// links.
		if strings.HasPrefix(os.Args[1], boardnet.ShareScheme) {
			runJoin(os.Args[1:])
			return
		}
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  boardsync serve [-port N] [-db PATH] [-no-mdns]
  boardsync join boardsync://host:port/room [-user ID] [-name NAME] [-authority] [-export out.pdf]
  boardsync browse`)
}

// runServe starts the session coordinator: room HTTP API, websocket relay,
// snapshot archive, LAN advertisement.
func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	port := fs.Int("port", envInt("BOARDSYNC_PORT", defaultPort), "listen port")
	dbPath := fs.String("db", envStr("BOARDSYNC_DB", "boardsync.db"), "snapshot archive path")
	noMDNS := fs.Bool("no-mdns", false, "skip LAN advertisement")
	fs.Parse(args)

	st, err := store.Open(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open snapshot store: %v", err)
	}
	defer st.Close()

	srv := boardnet.NewServer(st)
	defer srv.Shutdown()

	if !*noMDNS {
		mdnsServer, err := boardnet.Advertise(*port)
		if err != nil {
			log.Printf("[serve] mDNS advertisement failed: %v", err)
		} else {
			defer mdnsServer.Shutdown()
		}
	}

	if ip, err := boardnet.OutgoingIP(); err == nil {
		log.Printf("[serve] share rooms as %s", boardnet.ShareLink(ip, *port, "<room-id>"))
	}

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", *port),
		Handler: srv.Handler(),
	}
	go func() {
		log.Printf("[serve] coordinator listening on port %d", *port)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start coordinator: %v", err)
		}
	}()

	waitForSignal()
	log.Println("[serve] shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	httpSrv.Shutdown(ctx)
}

// runJoin runs a headless client session: join the room, stay connected,
// optionally dump the board to PDF on exit.
func runJoin(args []string) {
	fs := flag.NewFlagSet("join", flag.ExitOnError)
	user := fs.String("user", "", "session user id (generated when empty)")
	name := fs.String("name", "", "display name for presence pings")
	authority := fs.Bool("authority", false, "run the periodic snapshot export")
	exportPath := fs.String("export", "", "write the board to this PDF on exit")

	if len(args) < 1 || strings.HasPrefix(args[0], "-") {
		usage()
		os.Exit(2)
	}
	link := args[0]
	fs.Parse(args[1:])

	host, roomID, err := parseShareLink(link)
	if err != nil {
		log.Fatalf("Bad share link %q: %v", link, err)
	}
	userID := *user
	if userID == "" {
		userID = session.NewUserID()
	}

	done := make(chan struct{})
	sess := session.New(session.Config{
		UserID:    userID,
		UserName:  *name,
		RoomID:    roomID,
		Authority: *authority,
		OnRoomDeleted: func() {
			log.Println("[join] room was deleted")
			close(done)
		},
	})
	wsURL := fmt.Sprintf("ws://%s/ws?user=%s&room=%s", host, userID, roomID)
	sess.Attach(boardnet.NewTransport(wsURL))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sess.Connect(ctx); err != nil {
		log.Fatalf("Could not join room %s: %v", roomID, err)
	}
	log.Printf("[join] connected to %s as %s", roomID, userID)

	select {
	case <-done:
	case <-signalChan():
	}

	if *exportPath != "" {
		if err := export.PDF(*exportPath, sess.Log(), sess.Layers()); err != nil {
			log.Printf("[join] export failed: %v", err)
		} else {
			log.Printf("[join] board written to %s", *exportPath)
		}
	}
	sess.Close()
}

// runBrowse prints coordinators advertised on the local network.
func runBrowse() {
	log.Println("[browse] looking for coordinators...")
	err := boardnet.Browse(func(addr string) {
		fmt.Println(addr)
	})
	if err != nil {
		log.Fatalf("Browse failed: %v", err)
	}
}

// parseShareLink splits boardsync://host:port/room into its parts. A bare
// host:port/room also works.
func parseShareLink(link string) (host, roomID string, err error) {
	rest := strings.TrimPrefix(link, boardnet.ShareScheme)
	rest = strings.TrimSuffix(rest, "/")
	host, roomID, ok := strings.Cut(rest, "/")
	if !ok || host == "" || roomID == "" {
		return "", "", fmt.Errorf("want host:port/room")
	}
	return host, roomID, nil
}

func waitForSignal() {
	<-signalChan()
}

func signalChan() chan os.Signal {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	return ch
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n
		}
	}
	return fallback
}
