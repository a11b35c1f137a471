// Package chathistory implements the encrypted, append-only chat history
// store for a local E2EE messaging client: a per-user master key guarded
// by an OS-scoped secure store, HKDF-derived per-conversation subkeys, and
// an authenticated record log per conversation.
package chathistory

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/mi-e2ee/chathistory/securestore"
)

// Store is the single stateful handle scoped to one authenticated local
// user. Zero value is not usable; construct with New.
type Store struct {
	mu sync.Mutex

	secure securestore.Store

	stateDir string
	username string
	userDir  string
	convDir  string
	keyPath  string

	master    [32]byte
	keyLoaded bool
}

// New constructs a Store bound to the platform's secure-store primitive.
// Call Init before any other operation.
func New() *Store {
	return &Store{secure: securestore.New()}
}

// Init computes the per-user directory tree under stateDir, creates it if
// missing, and loads or generates the master key.
func (s *Store) Init(stateDir, username string) error {
	if stateDir == "" {
		return newErr("init", ErrStateDirEmpty, nil)
	}
	if username == "" {
		return newErr("init", ErrUsernameEmpty, nil)
	}

	userDir := filepath.Join(stateDir, "history", userHashHex(username))
	convDir := filepath.Join(userDir, "conversations")
	keyPath := filepath.Join(userDir, "history_key.bin")

	if err := os.MkdirAll(convDir, 0700); err != nil {
		return newErr("init", ErrCreateFailed, err)
	}

	s.mu.Lock()
	s.stateDir = stateDir
	s.username = username
	s.userDir = userDir
	s.convDir = convDir
	s.keyPath = keyPath
	s.mu.Unlock()

	return s.ensureKeyLoaded()
}

// IsInitialised reports whether the master key is currently loaded.
func (s *Store) IsInitialised() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keyLoaded
}

// Close wipes the held master key. The Store must be re-initialised via
// Init before further use.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wipeMasterKey()
}

// snapshot reads the fields needed by an operation under the lock, so the
// bulk of the work (file I/O, AEAD) can run unlocked.
func (s *Store) snapshot() (master [32]byte, convDir string, loaded bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.master, s.convDir, s.keyLoaded
}

// AppendEnvelope persists an incoming or outgoing message envelope,
// creating the conversation file (with its Meta record) on first use.
func (s *Store) AppendEnvelope(isGroup, outgoing bool, convID, sender string, envelope []byte, status Status, timestampSec uint64) error {
	if convID == "" {
		return newErr("append_envelope", ErrConvIDEmpty, nil)
	}
	if len(envelope) == 0 {
		return newErr("append_envelope", ErrEnvelopeEmpty, nil)
	}
	if err := s.ensureKeyLoaded(); err != nil {
		return err
	}
	master, convDir, _ := s.snapshot()

	path := convFilePath(convDir, isGroup, convID)
	if err := ensureConversationFile(path, master, isGroup, convID); err != nil {
		return err
	}
	convKey, err := deriveConversationKey(master, isGroup, convID)
	if err != nil {
		return newErr("append_envelope", ErrKeyInvalid, err)
	}
	plaintext := encodeMessagePlaintext(messageKindEnvelope, isGroup, outgoing, status, timestampSec, sender, envelope, "")
	return appendToConversationFile(path, convKey, plaintext)
}

// AppendSystem persists a locally-generated system message (join/leave,
// rekey notice, etc). Always recorded as incoming and Sent.
func (s *Store) AppendSystem(isGroup bool, convID, text string, timestampSec uint64) error {
	if convID == "" {
		return newErr("append_system", ErrConvIDEmpty, nil)
	}
	if text == "" {
		return newErr("append_system", ErrSystemTextEmpty, nil)
	}
	if err := s.ensureKeyLoaded(); err != nil {
		return err
	}
	master, convDir, _ := s.snapshot()

	path := convFilePath(convDir, isGroup, convID)
	if err := ensureConversationFile(path, master, isGroup, convID); err != nil {
		return err
	}
	convKey, err := deriveConversationKey(master, isGroup, convID)
	if err != nil {
		return newErr("append_system", ErrKeyInvalid, err)
	}
	plaintext := encodeMessagePlaintext(messageKindSystem, isGroup, false, StatusSent, timestampSec, "", nil, text)
	return appendToConversationFile(path, convKey, plaintext)
}

// AppendStatusUpdate records a delivery-state transition for a
// previously-appended envelope, identified by its 16-byte correlation id.
// The store does not verify that msgID refers to an existing message;
// it is applied as a hint during LoadConversation.
func (s *Store) AppendStatusUpdate(isGroup bool, convID string, msgID [16]byte, status Status, timestampSec uint64) error {
	if convID == "" {
		return newErr("append_status_update", ErrConvIDEmpty, nil)
	}
	if msgIDIsZero(msgID) {
		return newErr("append_status_update", ErrMsgIDEmpty, nil)
	}
	if err := s.ensureKeyLoaded(); err != nil {
		return err
	}
	master, convDir, _ := s.snapshot()

	path := convFilePath(convDir, isGroup, convID)
	if err := ensureConversationFile(path, master, isGroup, convID); err != nil {
		return err
	}
	convKey, err := deriveConversationKey(master, isGroup, convID)
	if err != nil {
		return newErr("append_status_update", ErrKeyInvalid, err)
	}
	plaintext := encodeStatusPlaintext(isGroup, status, timestampSec, msgID)
	return appendToConversationFile(path, convKey, plaintext)
}

// LoadConversation replays a conversation's log into a materialised
// message list, folding Status records into the matching envelope's
// status via the rank order Failed < Sent < Delivered < Read. limit=0
// returns everything; limit>0 returns at most the most recent limit
// messages.
func (s *Store) LoadConversation(isGroup bool, convID string, limit int) ([]Message, error) {
	master, convDir, loaded := s.snapshot()
	if !loaded || isZeroKey(master) {
		return nil, nil
	}

	path := convFilePath(convDir, isGroup, convID)
	if _, err := os.Stat(path); err != nil {
		return nil, nil
	}

	convKey, err := deriveConversationKey(master, isGroup, convID)
	if err != nil {
		return nil, newErr("load_conversation", ErrKeyInvalid, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, newErr("load_conversation", ErrOpen, err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	if err := verifyHeader(br); err != nil {
		return nil, err
	}

	msgs, err := replayRecords(br, convKey, master, isGroup, convID)
	if err != nil {
		return nil, err
	}

	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

// replayRecords performs a single linear scan over a conversation file's
// records: Meta records are skipped, Status records update a best-status
// map and any already-materialised message sharing the id, and Message
// records are appended (or merged into an existing entry sharing a
// correlation id).
func replayRecords(br *bufio.Reader, convKey, masterKey [32]byte, callerIsGroup bool, convID string) ([]Message, error) {
	var out []Message
	bestStatus := make(map[[16]byte]Status)
	indexByID := make(map[[16]byte]int)

	for {
		res, err := readRecord(br, convKey, masterKey)
		if err != nil {
			return nil, err
		}
		if res.eof {
			break
		}
		body := res.plaintext
		if len(body) < 1 {
			continue
		}
		recType := body[0]
		rest := body[1:]

		switch recType {
		case recordTypeMeta:
			// already consumed to locate this file; nothing to do here.
		case recordTypeStatus:
			st := decodeStatusPlaintext(rest)
			if !st.ok || !st.statusOK {
				continue
			}
			if st.isGroup != callerIsGroup {
				continue
			}
			bestStatus[st.msgID] = mergeStatus(bestStatus[st.msgID], st.status)
			if idx, ok := indexByID[st.msgID]; ok {
				out[idx].Status = mergeStatus(out[idx].Status, st.status)
			}
		case recordTypeMessage:
			dm := decodeMessagePlaintext(rest)
			if !dm.ok || !dm.statusOK {
				continue
			}
			if dm.isGroup != callerIsGroup {
				continue
			}

			switch dm.kind {
			case messageKindEnvelope:
				msg := Message{
					IsGroup:      dm.isGroup,
					Outgoing:     dm.outgoing,
					IsSystem:     false,
					Status:       dm.status,
					TimestampSec: dm.timestamp,
					ConvID:       convID,
					Sender:       dm.sender,
					Envelope:     dm.envelope,
				}
				if id, ok := extractEnvelopeMsgID(dm.envelope); ok {
					msg.Status = mergeStatus(msg.Status, bestStatus[id])
					if idx, exists := indexByID[id]; exists {
						out[idx] = msg
						out[idx].Status = mergeStatus(out[idx].Status, bestStatus[id])
						continue
					}
					indexByID[id] = len(out)
				}
				out = append(out, msg)
			case messageKindSystem:
				out = append(out, Message{
					IsGroup:      dm.isGroup,
					Outgoing:     dm.outgoing,
					IsSystem:     true,
					Status:       dm.status,
					TimestampSec: dm.timestamp,
					ConvID:       convID,
					SystemText:   dm.text,
				})
			}
		default:
			// Unknown record type: forward-compatibility hatch, skip.
		}
	}
	return out, nil
}

type conversationSummary struct {
	isGroup  bool
	convID   string
	messages []Message
	lastTS   uint64
}

// ExportRecentSnapshot scans the conversations directory, decrypts each
// file's Meta record under the master key to recover (is_group, conv_id),
// then replays each conversation and sorts the result by most recent
// activity.
func (s *Store) ExportRecentSnapshot(maxConversations, maxMessagesPerConversation int) ([]Message, error) {
	master, convDir, loaded := s.snapshot()
	if !loaded || isZeroKey(master) {
		return nil, nil
	}

	entries, err := os.ReadDir(convDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, newErr("export_recent_snapshot", ErrOpen, err)
	}

	var summaries []conversationSummary
	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}
		isGroup, convID, ok := readMetaFromFile(filepath.Join(convDir, ent.Name()), master)
		if !ok || convID == "" {
			continue
		}

		msgs, err := s.LoadConversation(isGroup, convID, maxMessagesPerConversation)
		if err != nil || len(msgs) == 0 {
			continue
		}

		var lastTS uint64
		for _, m := range msgs {
			if m.TimestampSec > lastTS {
				lastTS = m.TimestampSec
			}
		}
		summaries = append(summaries, conversationSummary{isGroup: isGroup, convID: convID, messages: msgs, lastTS: lastTS})
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].lastTS > summaries[j].lastTS
	})
	if maxConversations > 0 && len(summaries) > maxConversations {
		summaries = summaries[:maxConversations]
	}

	var out []Message
	for _, sum := range summaries {
		out = append(out, sum.messages...)
	}
	return out, nil
}

// readMetaFromFile opens a conversation file, verifies its header, and
// decrypts only its first record under the master key. The Meta record
// is always written under the master key at file creation.
func readMetaFromFile(path string, master [32]byte) (isGroup bool, convID string, ok bool) {
	f, err := os.Open(path)
	if err != nil {
		return false, "", false
	}
	defer f.Close()

	br := bufio.NewReader(f)
	if err := verifyHeader(br); err != nil {
		return false, "", false
	}

	var zero [32]byte
	res, err := readRecord(br, zero, master)
	if err != nil || res.eof {
		return false, "", false
	}
	if len(res.plaintext) < 1 || res.plaintext[0] != recordTypeMeta {
		return false, "", false
	}
	return decodeMetaPlaintext(res.plaintext[1:])
}
