package driver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/soundprediction/careergraph/pkg/types"
)

// Key prefixes for the embedded graph.
//
//	node:      0x01 label 0x00 key                             -> JSON(storedNode)
//	edge:      0x02 edgeID                                     -> JSON(storedEdge)
//	outgoing:  0x03 fromLabel 0x00 fromKey 0x00 type 0x00 edgeID -> empty
//	incoming:  0x04 toLabel 0x00 toKey 0x00 type 0x00 edgeID     -> empty
//	merge:     0x05 fromLabel 0x00 fromKey 0x00 type 0x00 toLabel 0x00 toKey -> edgeID
const (
	prefixNode     = byte(0x01)
	prefixEdge     = byte(0x02)
	prefixOutgoing = byte(0x03)
	prefixIncoming = byte(0x04)
	prefixMerge    = byte(0x05)
)

const maxConflictRetries = 16

// BadgerOptions configures a BadgerDriver.
type BadgerOptions struct {
	// Dir is the data directory. Ignored when InMemory is set.
	Dir string
	// InMemory keeps all data in RAM. Data is lost on Close.
	InMemory bool
	// SyncWrites forces an fsync after each commit.
	SyncWrites bool
}

// BadgerDriver implements GraphDriver on an embedded BadgerDB. Every write
// runs in one optimistic transaction; commits that conflict with a
// concurrent writer are retried from the start.
type BadgerDriver struct {
	db     *badger.DB
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

type storedNode struct {
	Label      types.Label      `json:"label"`
	Properties types.Properties `json:"properties"`
}

type storedEdge struct {
	ID         string           `json:"id"`
	Type       types.EdgeType   `json:"type"`
	From       types.NodeRef    `json:"from"`
	To         types.NodeRef    `json:"to"`
	Properties types.Properties `json:"properties"`
}

// NewBadgerDriver opens (or creates) an embedded graph.
func NewBadgerDriver(opts BadgerOptions, logger *slog.Logger) (*BadgerDriver, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("driver", "badger")

	badgerOpts := badger.DefaultOptions(opts.Dir)
	if opts.InMemory {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	} else if opts.Dir == "" {
		return nil, fmt.Errorf("badger: data directory required")
	}
	badgerOpts = badgerOpts.
		WithSyncWrites(opts.SyncWrites).
		WithLogger(&badgerLogger{logger: logger})

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, &types.ConnectionError{Op: "connect", Err: fmt.Errorf("failed to open BadgerDB: %w", err)}
	}
	return &BadgerDriver{db: db, logger: logger}, nil
}

// NewBadgerDriverInMemory creates an in-memory graph, for tests.
func NewBadgerDriverInMemory() (*BadgerDriver, error) {
	return NewBadgerDriver(BadgerOptions{InMemory: true}, nil)
}

// badgerLogger forwards badger's warnings and errors to slog.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(string, ...any) {}

func (l *badgerLogger) Debugf(string, ...any) {}

// ============================================================================
// Key encoding helpers
// ============================================================================

func joinKey(prefix byte, parts ...string) []byte {
	size := 1
	for _, p := range parts {
		size += len(p) + 1
	}
	key := make([]byte, 0, size)
	key = append(key, prefix)
	for i, p := range parts {
		if i > 0 {
			key = append(key, 0x00)
		}
		key = append(key, p...)
	}
	return key
}

func nodeKey(ref types.NodeRef) []byte {
	return joinKey(prefixNode, string(ref.Label), ref.Key)
}

func labelPrefix(label types.Label) []byte {
	return append(joinKey(prefixNode, string(label)), 0x00)
}

func edgeKey(id string) []byte {
	return joinKey(prefixEdge, id)
}

func outgoingKey(e *storedEdge) []byte {
	return joinKey(prefixOutgoing, string(e.From.Label), e.From.Key, string(e.Type), e.ID)
}

func outgoingPrefix(ref types.NodeRef, t types.EdgeType) []byte {
	return append(joinKey(prefixOutgoing, string(ref.Label), ref.Key, string(t)), 0x00)
}

func incomingKey(e *storedEdge) []byte {
	return joinKey(prefixIncoming, string(e.To.Label), e.To.Key, string(e.Type), e.ID)
}

func incomingPrefix(ref types.NodeRef, t types.EdgeType) []byte {
	return append(joinKey(prefixIncoming, string(ref.Label), ref.Key, string(t)), 0x00)
}

func mergeKey(from types.NodeRef, t types.EdgeType, to types.NodeRef, entry string) []byte {
	parts := []string{string(from.Label), from.Key, string(t), string(to.Label), to.Key}
	if entry != "" {
		parts = append(parts, entry)
	}
	return joinKey(prefixMerge, parts...)
}

// lastSegment returns the part of an index key after its final separator.
func lastSegment(key []byte) string {
	i := bytes.LastIndexByte(key, 0x00)
	if i < 0 {
		return ""
	}
	return string(key[i+1:])
}

// ============================================================================
// Transactions
// ============================================================================

func (b *BadgerDriver) checkOpen(op string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return &types.ConnectionError{Op: op, Err: badger.ErrDBClosed}
	}
	return nil
}

func (b *BadgerDriver) classify(op string, err error) error {
	if errors.Is(err, badger.ErrDBClosed) {
		return &types.ConnectionError{Op: op, Err: err}
	}
	return err
}

// ExecuteWrite implements GraphDriver.
func (b *BadgerDriver) ExecuteWrite(ctx context.Context, fn func(ctx context.Context, tx WriteTx) error) error {
	if err := b.checkOpen("write"); err != nil {
		return err
	}

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := b.db.Update(func(txn *badger.Txn) error {
			return fn(ctx, &badgerWriteTx{txn: txn})
		})
		if errors.Is(err, badger.ErrConflict) && attempt < maxConflictRetries {
			b.logger.Debug("write conflict, retrying", "attempt", attempt+1)
			continue
		}
		return b.classify("write", err)
	}
}

func (b *BadgerDriver) view(ctx context.Context, op string, fn func(txn *badger.Txn) error) error {
	if err := b.checkOpen(op); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.classify(op, b.db.View(fn))
}

type badgerWriteTx struct {
	txn *badger.Txn
}

func (t *badgerWriteTx) UpsertNode(ctx context.Context, u Upsert) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateRef(u.Ref); err != nil {
		return err
	}
	if err := validateProperties(u.OnCreate, u.FillMissing); err != nil {
		return err
	}

	node, found, err := getNode(t.txn, u.Ref)
	if err != nil {
		return err
	}
	if !found {
		props := u.OnCreate.Compact()
		props[u.Ref.Label.KeyProperty()] = u.Ref.Key
		return putNode(t.txn, u.Ref, &storedNode{Label: u.Ref.Label, Properties: props})
	}

	changed := false
	for k, v := range u.FillMissing.Compact() {
		if _, ok := node.Properties[k]; ok {
			continue
		}
		node.Properties[k] = v
		changed = true
	}
	if !changed {
		return nil
	}
	return putNode(t.txn, u.Ref, node)
}

func (t *badgerWriteTx) MergeRecord(ctx context.Context, ref types.NodeRef, props types.Properties) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateRef(ref); err != nil {
		return err
	}
	if err := validateProperties(props); err != nil {
		return err
	}

	node, found, err := getNode(t.txn, ref)
	if err != nil {
		return err
	}
	if !found {
		node = &storedNode{Label: ref.Label, Properties: types.Properties{}}
	}
	for k, v := range props.Compact() {
		node.Properties[k] = v
	}
	node.Properties[ref.Label.KeyProperty()] = ref.Key
	return putNode(t.txn, ref, node)
}

func (t *badgerWriteTx) Relate(ctx context.Context, r Relation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateRelation(r); err != nil {
		return err
	}
	for _, ref := range []types.NodeRef{r.From, r.To} {
		if _, found, err := getNode(t.txn, ref); err != nil {
			return err
		} else if !found {
			return fmt.Errorf("%s %s -> %s: %s missing: %w", r.Type, r.From, r.To, ref, ErrNodeNotFound)
		}
	}

	mkey := mergeKey(r.From, r.Type, r.To, r.Entry)
	props := r.Properties.Compact()
	if r.Entry != "" {
		props[PropEntry] = r.Entry
	}
	existingID, err := getString(t.txn, mkey)
	if err != nil {
		return err
	}

	if r.Mode == EdgeMerge && existingID != "" {
		edge, err := getEdge(t.txn, existingID)
		if err != nil {
			return err
		}
		for k, v := range props {
			edge.Properties[k] = v
		}
		return putEdge(t.txn, edge)
	}

	edge := &storedEdge{
		ID:         uuid.NewString(),
		Type:       r.Type,
		From:       r.From,
		To:         r.To,
		Properties: props,
	}
	if err := putEdge(t.txn, edge); err != nil {
		return err
	}
	if err := t.txn.Set(outgoingKey(edge), nil); err != nil {
		return err
	}
	if err := t.txn.Set(incomingKey(edge), nil); err != nil {
		return err
	}
	if existingID == "" {
		return t.txn.Set(mkey, []byte(edge.ID))
	}
	return nil
}

// ============================================================================
// Storage helpers
// ============================================================================

func getNode(txn *badger.Txn, ref types.NodeRef) (*storedNode, bool, error) {
	item, err := txn.Get(nodeKey(ref))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var node storedNode
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &node)
	}); err != nil {
		return nil, false, fmt.Errorf("failed to decode node %s: %w", ref, err)
	}
	if node.Properties == nil {
		node.Properties = types.Properties{}
	}
	return &node, true, nil
}

func putNode(txn *badger.Txn, ref types.NodeRef, node *storedNode) error {
	data, err := json.Marshal(node)
	if err != nil {
		return fmt.Errorf("failed to encode node %s: %w", ref, err)
	}
	return txn.Set(nodeKey(ref), data)
}

func getEdge(txn *badger.Txn, id string) (*storedEdge, error) {
	item, err := txn.Get(edgeKey(id))
	if err != nil {
		return nil, fmt.Errorf("edge %s: %w", id, err)
	}
	var edge storedEdge
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &edge)
	}); err != nil {
		return nil, fmt.Errorf("failed to decode edge %s: %w", id, err)
	}
	if edge.Properties == nil {
		edge.Properties = types.Properties{}
	}
	return &edge, nil
}

func putEdge(txn *badger.Txn, edge *storedEdge) error {
	data, err := json.Marshal(edge)
	if err != nil {
		return fmt.Errorf("failed to encode edge %s: %w", edge.ID, err)
	}
	return txn.Set(edgeKey(edge.ID), data)
}

func getString(txn *badger.Txn, key []byte) (string, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	val, err := item.ValueCopy(nil)
	return string(val), err
}

// scanKeys calls fn with every key under prefix. Keys are only valid for
// the duration of the call.
func scanKeys(txn *badger.Txn, prefix []byte, fn func(key []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := fn(it.Item().Key()); err != nil {
			return err
		}
	}
	return nil
}

// scanNodes decodes every node with the given label.
func scanNodes(txn *badger.Txn, label types.Label, fn func(props types.Properties) error) error {
	prefix := labelPrefix(label)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		var node storedNode
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &node)
		}); err != nil {
			return fmt.Errorf("failed to decode %s node: %w", label, err)
		}
		if node.Properties == nil {
			node.Properties = types.Properties{}
		}
		if err := fn(node.Properties); err != nil {
			return err
		}
	}
	return nil
}

// neighbors returns the distinct targets of outgoing edges of type t that
// carry the wanted label, in first-seen order.
func neighbors(txn *badger.Txn, from types.NodeRef, t types.EdgeType, want types.Label) ([]types.NodeRef, error) {
	var (
		out  []types.NodeRef
		seen = map[string]bool{}
	)
	err := scanKeys(txn, outgoingPrefix(from, t), func(key []byte) error {
		edge, err := getEdge(txn, lastSegment(key))
		if err != nil {
			return err
		}
		if edge.To.Label != want || seen[edge.To.Key] {
			return nil
		}
		seen[edge.To.Key] = true
		out = append(out, edge.To)
		return nil
	})
	return out, err
}

func displayNames(txn *badger.Txn, refs []types.NodeRef) ([]string, error) {
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		node, found, err := getNode(txn, ref)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		out = append(out, node.Properties.DisplayName())
	}
	return out, nil
}

// ============================================================================
// GraphReader
// ============================================================================

// ResumeSummary implements GraphReader.
func (b *BadgerDriver) ResumeSummary(ctx context.Context, resumeID string) (*types.ResumeSummary, error) {
	var summary *types.ResumeSummary
	err := b.view(ctx, "ResumeSummary", func(txn *badger.Txn) error {
		ref := types.Ref(types.LabelResume, resumeID)
		node, found, err := getNode(txn, ref)
		if err != nil || !found {
			return err
		}

		s := &types.ResumeSummary{Resume: types.ProfileFromProperties(node.Properties)}
		for _, hop := range []struct {
			edge  types.EdgeType
			label types.Label
			dst   *[]string
		}{
			{types.EdgeHasEducation, types.LabelInstitute, &s.Institutes},
			{types.EdgeHasExperience, types.LabelCompany, &s.Companies},
			{types.EdgeHasSkill, types.LabelSkill, &s.Skills},
		} {
			refs, err := neighbors(txn, ref, hop.edge, hop.label)
			if err != nil {
				return err
			}
			if *hop.dst, err = displayNames(txn, refs); err != nil {
				return err
			}
		}
		summary = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// ListResumes implements GraphReader.
func (b *BadgerDriver) ListResumes(ctx context.Context) ([]types.ResumeListing, error) {
	var out []types.ResumeListing
	err := b.view(ctx, "ListResumes", func(txn *badger.Txn) error {
		return scanNodes(txn, types.LabelResume, func(p types.Properties) error {
			out = append(out, types.ResumeListing{
				ID:    p.String(types.PropID),
				Name:  p.String("name"),
				Email: p.String("email"),
			})
			return nil
		})
	})
	return out, err
}

// ResumeSkills implements GraphReader.
func (b *BadgerDriver) ResumeSkills(ctx context.Context, resumeID string) ([]string, error) {
	var out []string
	err := b.view(ctx, "ResumeSkills", func(txn *badger.Txn) error {
		var ids []string
		if resumeID != "" {
			ids = []string{resumeID}
		} else if err := scanNodes(txn, types.LabelResume, func(p types.Properties) error {
			ids = append(ids, p.String(types.PropID))
			return nil
		}); err != nil {
			return err
		}

		var (
			refs []types.NodeRef
			seen = map[string]bool{}
		)
		for _, id := range ids {
			skills, err := neighbors(txn, types.Ref(types.LabelResume, id), types.EdgeHasSkill, types.LabelSkill)
			if err != nil {
				return err
			}
			for _, s := range skills {
				if !seen[s.Key] {
					seen[s.Key] = true
					refs = append(refs, s)
				}
			}
		}

		var err error
		out, err = displayNames(txn, refs)
		return err
	})
	return out, err
}

// SkillDemand implements GraphReader.
func (b *BadgerDriver) SkillDemand(ctx context.Context) ([]types.SkillDemand, error) {
	var out []types.SkillDemand
	err := b.view(ctx, "SkillDemand", func(txn *badger.Txn) error {
		return scanNodes(txn, types.LabelSkill, func(p types.Properties) error {
			ref := types.Ref(types.LabelSkill, p.String(types.PropName))
			var demand int64
			for _, t := range types.DemandEdgeTypes {
				if err := scanKeys(txn, incomingPrefix(ref, t), func([]byte) error {
					demand++
					return nil
				}); err != nil {
					return err
				}
			}
			if demand > 0 {
				out = append(out, types.SkillDemand{Skill: p.DisplayName(), Key: ref.Key, Demand: demand})
			}
			return nil
		})
	})
	return out, err
}

// JobListings implements GraphReader.
func (b *BadgerDriver) JobListings(ctx context.Context) ([]types.JobListing, error) {
	var out []types.JobListing
	err := b.view(ctx, "JobListings", func(txn *badger.Txn) error {
		return scanNodes(txn, types.LabelJob, func(p types.Properties) error {
			job := types.JobFromProperties(p)
			refs, err := neighbors(txn, types.Ref(types.LabelJob, job.ID), types.EdgeRequiresSkill, types.LabelSkill)
			if err != nil {
				return err
			}
			job.SkillKeys = make([]string, 0, len(refs))
			for _, r := range refs {
				job.SkillKeys = append(job.SkillKeys, r.Key)
			}
			if job.Skills, err = displayNames(txn, refs); err != nil {
				return err
			}
			out = append(out, job)
			return nil
		})
	})
	return out, err
}

// Stats implements GraphReader.
func (b *BadgerDriver) Stats(ctx context.Context) (*types.GraphStats, error) {
	stats := &types.GraphStats{
		Nodes: make(map[string]int64, len(types.AllLabels)),
		Edges: make(map[string]int64, len(types.AllEdgeTypes)),
	}
	err := b.view(ctx, "Stats", func(txn *badger.Txn) error {
		for _, label := range types.AllLabels {
			var n int64
			if err := scanKeys(txn, labelPrefix(label), func([]byte) error {
				n++
				return nil
			}); err != nil {
				return err
			}
			stats.Nodes[string(label)] = n
		}
		// outgoing index: label 0 key 0 type 0 edgeID
		return scanKeys(txn, []byte{prefixOutgoing}, func(key []byte) error {
			parts := bytes.Split(key[1:], []byte{0x00})
			if len(parts) != 4 {
				return fmt.Errorf("malformed outgoing index key %q", key)
			}
			stats.Edges[string(parts[2])]++
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// CreateIndices is a no-op: every lookup is served by a key or a key prefix.
func (b *BadgerDriver) CreateIndices(ctx context.Context) error {
	return b.checkOpen("CreateIndices")
}

// VerifyConnectivity reports whether the database is open.
func (b *BadgerDriver) VerifyConnectivity(ctx context.Context) error {
	return b.checkOpen("VerifyConnectivity")
}

// Provider implements GraphDriver.
func (b *BadgerDriver) Provider() GraphProvider {
	return GraphProviderBadger
}

// Close closes the database. Further calls fail with *types.ConnectionError.
func (b *BadgerDriver) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.db.Close()
}
