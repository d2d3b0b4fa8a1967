package app

import (
	"encoding/json"
	"errors"
	"os"
)

type InitCfg struct{}

type QueryCmd struct{}

type PublishCmd struct {
	Content string `arg:"positional,required" help:"content of the text note to publish"`
}

type Config struct {
	InitCfgCmd  *InitCfg    `arg:"subcommand:initcfg" json:"-" help:"initialize the profile configuration file from the given flags"`
	QueryCmd    *QueryCmd   `arg:"subcommand:query" json:"-" help:"query the local event store only, no network"`
	PublishCmd  *PublishCmd `arg:"subcommand:publish" json:"-" help:"sign and publish a text note to all relays"`
	Relays      []string    `arg:"-r,--relay,separate" json:"relays" help:"relay to aggregate from (can use flag repeatedly for multiple relays)"`
	Profile     string      `arg:"-p,--profile" json:"-" default:"aggregatr" help:"profile name to use for storage"`
	SecKey      string      `arg:"-s,--seckey" json:"seckey" help:"secret key used to sign published events"`
	Kinds       []int       `arg:"-k,--kind,separate" json:"-" help:"event kind to subscribe to (can use flag repeatedly)"`
	Authors     []string    `arg:"-a,--author,separate" json:"-" help:"author pubkey to subscribe to, hex (can use flag repeatedly)"`
	IDs         []string    `arg:"-i,--id,separate" json:"-" help:"event id to subscribe to, hex (can use flag repeatedly)"`
	Since       int64       `arg:"--since" json:"-" help:"only events at or after this unix timestamp"`
	Until       int64       `arg:"--until" json:"-" help:"only events at or before this unix timestamp"`
	Limit       int         `arg:"--limit" json:"-" help:"ask relays for at most this many stored events"`
	SubTimeout  int         `arg:"--subtimeout" json:"sub_timeout" default:"10" help:"seconds a relay may sit on a subscription without EOSE before it is marked failed for it"`
	BackoffMin  int         `arg:"--backoffmin" json:"backoff_min" default:"500" help:"reconnect backoff floor in milliseconds"`
	BackoffMax  int         `arg:"--backoffmax" json:"backoff_max" default:"60000" help:"reconnect backoff ceiling in milliseconds"`
	IntakeDepth int         `arg:"--intake" json:"intake_depth" default:"512" help:"ingest pipeline intake queue depth"`
	InboxSize   int         `arg:"--inbox" json:"inbox_size" default:"256" help:"per-relay inbound envelope buffer size"`
	LogLevel    string      `arg:"--loglevel" json:"-" default:"info" help:"set log level [off,fatal,error,warn,info,debug,trace] (can also use GODEBUG environment variable)"`
}

func (c *Config) Save(filename string) (err error) {
	if c == nil {
		err = errors.New("cannot save nil config")
		log.E.Ln(err)
		return
	}
	var b []byte
	if b, err = json.MarshalIndent(c, "", "    "); chk.E(err) {
		return
	}
	if err = os.WriteFile(filename, b, 0600); chk.E(err) {
		return
	}
	return
}

func (c *Config) Load(filename string) (err error) {
	if c == nil {
		err = errors.New("cannot load into nil config")
		chk.E(err)
		return
	}
	var b []byte
	if b, err = os.ReadFile(filename); chk.E(err) {
		return
	}
	if err = json.Unmarshal(b, c); chk.E(err) {
		return
	}
	return
}
