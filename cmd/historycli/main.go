// Command historycli exercises a chathistory.Store from the shell: init a
// user, append envelopes/system messages/status updates, and dump a
// conversation or a recent-activity snapshot as JSON.
//
// Commands:
//
//	init                 Initialise (or load) the per-user store
//	append-envelope      Append a message envelope
//	append-system        Append a system message
//	append-status        Append a status update for a message id
//	load                 Dump a conversation's materialised messages
//	snapshot             Dump the recent-conversation snapshot
//	gen-msg-id           Print a fresh random 16-byte message id, hex-encoded
package main

import (
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/mi-e2ee/chathistory"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "init":
		runInit(os.Args[2:])
	case "append-envelope":
		runAppendEnvelope(os.Args[2:])
	case "append-system":
		runAppendSystem(os.Args[2:])
	case "append-status":
		runAppendStatus(os.Args[2:])
	case "load":
		runLoad(os.Args[2:])
	case "snapshot":
		runSnapshot(os.Args[2:])
	case "gen-msg-id":
		runGenMsgID()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("historycli - inspect an encrypted chat history store")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  historycli <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  init             Initialise or load a user's store")
	fmt.Println("  append-envelope  Append a message envelope")
	fmt.Println("  append-system    Append a system message")
	fmt.Println("  append-status    Append a status update")
	fmt.Println("  load             Dump a conversation")
	fmt.Println("  snapshot         Dump the recent-conversation snapshot")
	fmt.Println("  gen-msg-id       Print a fresh random 16-byte message id, hex-encoded")
}

// openStore wires up common flags and returns an initialised Store.
func openStore(fs *flag.FlagSet, stateDir, username *string) *chathistory.Store {
	if *stateDir == "" || *username == "" {
		fmt.Fprintln(os.Stderr, "error: -state-dir and -username are required")
		fs.Usage()
		os.Exit(2)
	}
	st := chathistory.New()
	if err := st.Init(*stateDir, *username); err != nil {
		fmt.Fprintf(os.Stderr, "init: %v\n", err)
		os.Exit(1)
	}
	return st
}

func runInit(args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	stateDir := fs.String("state-dir", "", "state directory root")
	username := fs.String("username", "", "local username")
	fs.Parse(args)

	st := openStore(fs, stateDir, username)
	fmt.Printf("initialised=%v\n", st.IsInitialised())
}

func runAppendEnvelope(args []string) {
	fs := flag.NewFlagSet("append-envelope", flag.ExitOnError)
	stateDir := fs.String("state-dir", "", "state directory root")
	username := fs.String("username", "", "local username")
	convID := fs.String("conv-id", "", "conversation id")
	isGroup := fs.Bool("group", false, "conversation is a group")
	outgoing := fs.Bool("outgoing", true, "message is outgoing")
	sender := fs.String("sender", "", "sender display name")
	envelopeHex := fs.String("envelope-hex", "", "envelope bytes, hex-encoded")
	status := fs.String("status", "sent", "sent|delivered|read|failed")
	ts := fs.Uint64("timestamp", 0, "unix seconds")
	fs.Parse(args)

	envelope, err := hex.DecodeString(*envelopeHex)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bad -envelope-hex: %v\n", err)
		os.Exit(2)
	}

	st := openStore(fs, stateDir, username)
	if err := st.AppendEnvelope(*isGroup, *outgoing, *convID, *sender, envelope, parseStatus(*status), *ts); err != nil {
		fmt.Fprintf(os.Stderr, "append-envelope: %v\n", err)
		os.Exit(1)
	}
}

func runAppendSystem(args []string) {
	fs := flag.NewFlagSet("append-system", flag.ExitOnError)
	stateDir := fs.String("state-dir", "", "state directory root")
	username := fs.String("username", "", "local username")
	convID := fs.String("conv-id", "", "conversation id")
	isGroup := fs.Bool("group", false, "conversation is a group")
	text := fs.String("text", "", "system message text")
	ts := fs.Uint64("timestamp", 0, "unix seconds")
	fs.Parse(args)

	st := openStore(fs, stateDir, username)
	if err := st.AppendSystem(*isGroup, *convID, *text, *ts); err != nil {
		fmt.Fprintf(os.Stderr, "append-system: %v\n", err)
		os.Exit(1)
	}
}

func runAppendStatus(args []string) {
	fs := flag.NewFlagSet("append-status", flag.ExitOnError)
	stateDir := fs.String("state-dir", "", "state directory root")
	username := fs.String("username", "", "local username")
	convID := fs.String("conv-id", "", "conversation id")
	isGroup := fs.Bool("group", false, "conversation is a group")
	msgIDHexFlag := fs.String("msg-id-hex", "", "16-byte message id, hex-encoded")
	status := fs.String("status", "delivered", "sent|delivered|read|failed")
	ts := fs.Uint64("timestamp", 0, "unix seconds")
	fs.Parse(args)

	raw, err := hex.DecodeString(*msgIDHexFlag)
	if err != nil || len(raw) != 16 {
		fmt.Fprintln(os.Stderr, "error: -msg-id-hex must be exactly 32 hex characters")
		os.Exit(2)
	}
	var id [16]byte
	copy(id[:], raw)

	st := openStore(fs, stateDir, username)
	if err := st.AppendStatusUpdate(*isGroup, *convID, id, parseStatus(*status), *ts); err != nil {
		fmt.Fprintf(os.Stderr, "append-status: %v\n", err)
		os.Exit(1)
	}
}

func runLoad(args []string) {
	fs := flag.NewFlagSet("load", flag.ExitOnError)
	stateDir := fs.String("state-dir", "", "state directory root")
	username := fs.String("username", "", "local username")
	convID := fs.String("conv-id", "", "conversation id")
	isGroup := fs.Bool("group", false, "conversation is a group")
	limit := fs.Int("limit", 0, "max messages, 0 = all")
	fs.Parse(args)

	st := openStore(fs, stateDir, username)
	msgs, err := st.LoadConversation(*isGroup, *convID, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load: %v\n", err)
		os.Exit(1)
	}
	printJSON(msgs)
}

func runSnapshot(args []string) {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	stateDir := fs.String("state-dir", "", "state directory root")
	username := fs.String("username", "", "local username")
	maxConvs := fs.Int("max-conversations", 0, "0 = all")
	maxPerConv := fs.Int("max-messages-per-conversation", 0, "0 = all")
	fs.Parse(args)

	st := openStore(fs, stateDir, username)
	msgs, err := st.ExportRecentSnapshot(*maxConvs, *maxPerConv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "snapshot: %v\n", err)
		os.Exit(1)
	}
	printJSON(msgs)
}

// runGenMsgID prints a fresh random 16-byte id, hex-encoded, suitable for
// -msg-id-hex: a UUIDv4 is 16 bytes of random entropy, the same shape as
// the envelope-embedded correlation id this module reads.
func runGenMsgID() {
	id, err := uuid.NewRandom()
	if err != nil {
		fmt.Fprintf(os.Stderr, "gen-msg-id: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(hex.EncodeToString(id[:]))
}

func parseStatus(s string) chathistory.Status {
	switch s {
	case "sent":
		return chathistory.StatusSent
	case "delivered":
		return chathistory.StatusDelivered
	case "read":
		return chathistory.StatusRead
	case "failed":
		return chathistory.StatusFailed
	default:
		return chathistory.StatusSent
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
