// Command aggregatr subscribes to a set of nostr relays, merges their
// event streams into a local badger store, and emits each event exactly
// once as line structured JSON. Subcommands query the local store and
// publish signed text notes through the same engine.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Hubmakerlabs/aggregatr/app"
	"github.com/Hubmakerlabs/aggregatr/pkg/context"
	"github.com/Hubmakerlabs/aggregatr/pkg/interrupt"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/event"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/filters"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/keys"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/kind"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/tags"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/timestamp"
	"github.com/Hubmakerlabs/aggregatr/pkg/qu"
	"github.com/Hubmakerlabs/aggregatr/pkg/slog"
	"github.com/alexflint/go-arg"
)

var (
	AppName = "aggregatr"
	Version = "v0.0.1"
)

var log, chk = slog.New(os.Stderr)

var args, conf app.Config

func main() {
	arg.MustParse(&args)
	slog.SetLogLevel(slog.LevelFromString(args.LogLevel))
	log.T.S(args)
	var err error
	var home string
	if home, err = os.UserHomeDir(); log.E.Chk(err) {
		os.Exit(1)
	}
	dataDir := filepath.Join(home, "."+args.Profile)
	configPath := filepath.Join(dataDir, "config.json")
	dbPath := filepath.Join(dataDir, "db")
	if err = os.MkdirAll(dataDir, 0700); chk.E(err) {
		os.Exit(1)
	}
	if args.InitCfgCmd != nil {
		if args.SecKey == "" {
			args.SecKey = keys.GeneratePrivateKey()
		}
		if err = args.Save(configPath); chk.E(err) {
			log.E.F("failed to write configuration: %v", err)
			os.Exit(1)
		}
		log.I.F("wrote configuration to %s", configPath)
		return
	}
	if err = conf.Load(configPath); err == nil {
		// the config file fills in whatever the CLI left unset
		if len(args.Relays) == 0 {
			args.Relays = append(args.Relays, conf.Relays...)
		}
		if args.SecKey == "" {
			args.SecKey = conf.SecKey
		}
	}

	c, cancel := context.Cancel(context.Bg())
	interrupt.AddHandler(cancel)

	var cl *app.Client
	if cl, err = app.New(c, &args, dbPath); chk.E(err) {
		os.Exit(1)
	}
	defer cl.Shutdown()

	switch {
	case args.QueryCmd != nil:
		queryLocal(c, cl)
	case args.PublishCmd != nil:
		publish(c, cl, args.PublishCmd.Content)
	default:
		stream(c, cl)
	}
}

func queryLocal(c context.T, cl *app.Client) {
	evs, err := cl.QueryLocal(c, args.Filter())
	if chk.E(err) {
		os.Exit(1)
	}
	for _, ev := range evs {
		emit(ev)
	}
}

func publish(c context.T, cl *app.Client, content string) {
	if args.SecKey == "" {
		log.E.Ln("publish requires a secret key; run initcfg or pass -s")
		os.Exit(1)
	}
	ev := &event.T{
		CreatedAt: timestamp.Now(),
		Kind:      kind.TextNote,
		Tags:      tags.T{},
		Content:   content,
	}
	var err error
	if err = ev.Sign(args.SecKey); chk.E(err) {
		os.Exit(1)
	}
	for _, res := range cl.Publish(c, ev) {
		verdict := "rejected"
		if res.Accepted {
			verdict = "accepted"
		}
		log.I.F("%s: %s %s", res.Relay, verdict, res.Reason)
	}
	emit(ev)
}

func stream(c context.T, cl *app.Client) {
	if len(args.Relays) == 0 {
		log.E.Ln("no relays configured; pass -r or run initcfg")
		os.Exit(1)
	}
	sub, err := cl.Subscribe("firehose", filters.T{args.Filter()})
	if chk.E(err) {
		os.Exit(1)
	}
	done := qu.T()
	go func() {
		defer done.Q()
		for ev := range sub.Events {
			emit(ev)
		}
	}()
	select {
	case <-sub.Done:
		log.I.Ln("all relays reached end of stored events or failed")
		// keep streaming live events until interrupted
		select {
		case <-c.Done():
		case <-done:
		}
	case <-c.Done():
	case <-done:
	}
	cl.Unsubscribe("firehose")
	<-done
}

func emit(ev *event.T) {
	b, err := ev.MarshalJSON()
	if chk.E(err) {
		return
	}
	fmt.Println(string(b))
}
