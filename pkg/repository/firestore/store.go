package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/google/uuid"
	"github.com/kazanshin/website/pkg/domain/interfaces"
	"github.com/kazanshin/website/pkg/domain/model/errs"
	"github.com/kazanshin/website/pkg/domain/model/logentry"
	"github.com/kazanshin/website/pkg/domain/types"
	"github.com/kazanshin/website/pkg/repository/listindex"
	"github.com/kazanshin/website/pkg/utils/clock"
	"github.com/kazanshin/website/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Firestore stores a list as the sub collection lists/{key}/entries. Each
// entry document carries a sequence number; the list document tracks the
// next sequence and the base sequence below which documents are stale.
// Moving the base is how a swap becomes visible in one transaction.
type Firestore struct {
	db         *firestore.Client
	collection string
	eb         *goerr.Builder
}

var _ interfaces.Store = &Firestore{}

const (
	collectionLists      = "lists"
	collectionLocks      = "locks"
	subcollectionEntries = "entries"

	// inQueryLimit is the maximum number of values of an "in" filter.
	inQueryLimit = 30
)

type listDoc struct {
	NextSeq int64 `firestore:"next_seq"`
	BaseSeq int64 `firestore:"base_seq"`
}

type entryDoc struct {
	Seq     int64  `firestore:"seq"`
	EntryID string `firestore:"entry_id"`
	Data    string `firestore:"data"`
}

type lockDoc struct {
	Token     string    `firestore:"token"`
	ExpiresAt time.Time `firestore:"expires_at"`
}

// Option configures Firestore.
type Option func(*Firestore)

// WithCollectionPrefix prefixes the top level collections, letting several
// deployments or test runs share one database.
func WithCollectionPrefix(prefix string) Option {
	return func(r *Firestore) {
		r.collection = prefix
	}
}

func New(ctx context.Context, projectID, databaseID string, opts ...Option) (*Firestore, error) {
	db, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project_id", projectID),
			goerr.V("database_id", databaseID),
			goerr.T(errs.TagStoreUnavailable))
	}

	r := &Firestore{
		db: db,
		eb: goerr.NewBuilder(
			goerr.TV(errs.RepositoryKey, "firestore"),
			goerr.V("project_id", projectID),
			goerr.V("database_id", databaseID),
		),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *Firestore) Close() error {
	return r.db.Close()
}

func (r *Firestore) unavailable(err error, msg, key string) error {
	return r.eb.Wrap(err, msg, goerr.TV(errs.LogKeyKey, key), goerr.T(errs.TagStoreUnavailable))
}

func (r *Firestore) listRef(key string) *firestore.DocumentRef {
	return r.db.Collection(r.collection + collectionLists).Doc(key)
}

func (r *Firestore) entriesRef(key string) *firestore.CollectionRef {
	return r.listRef(key).Collection(subcollectionEntries)
}

func seqDocID(seq int64) string {
	return fmt.Sprintf("%020d", seq)
}

func (r *Firestore) getList(ctx context.Context, tx *firestore.Transaction, key string) (listDoc, bool, error) {
	var (
		snap *firestore.DocumentSnapshot
		err  error
	)
	if tx != nil {
		snap, err = tx.Get(r.listRef(key))
	} else {
		snap, err = r.listRef(key).Get(ctx)
	}
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return listDoc{}, false, nil
		}
		return listDoc{}, false, r.unavailable(err, "failed to get list document", key)
	}

	var doc listDoc
	if err := snap.DataTo(&doc); err != nil {
		return listDoc{}, false, r.eb.Wrap(err, "failed to decode list document", goerr.TV(errs.LogKeyKey, key))
	}
	return doc, true, nil
}

// liveQuery selects the entries visible for key in sequence order.
func (r *Firestore) liveQuery(key string, base int64) firestore.Query {
	return r.entriesRef(key).Where("seq", ">=", base).OrderBy("seq", firestore.Asc)
}

func (r *Firestore) count(ctx context.Context, key string, base int64) (int64, error) {
	q := r.entriesRef(key).Where("seq", ">=", base)
	result, err := q.NewAggregationQuery().WithCount("total").Get(ctx)
	if err != nil {
		return 0, r.unavailable(err, "failed to count entries", key)
	}
	return extractCount(result, "total")
}

func (r *Firestore) Append(ctx context.Context, key string, entries ...logentry.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	docs := make([]entryDoc, 0, len(entries))
	for _, e := range entries {
		raw, err := logentry.Marshal(e)
		if err != nil {
			return r.eb.Wrap(err, "failed to encode log entry", goerr.TV(errs.LogKeyKey, key))
		}
		docs = append(docs, entryDoc{EntryID: e.Identity().String(), Data: raw})
	}

	err := r.db.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		list, _, err := r.getList(ctx, tx, key)
		if err != nil {
			return err
		}
		for i := range docs {
			docs[i].Seq = list.NextSeq + int64(i)
			if err := tx.Create(r.entriesRef(key).Doc(seqDocID(docs[i].Seq)), docs[i]); err != nil {
				return err
			}
		}
		list.NextSeq += int64(len(docs))
		return tx.Set(r.listRef(key), list)
	})
	if err != nil {
		return r.unavailable(err, "failed to append entries", key)
	}
	return nil
}

func (r *Firestore) Range(ctx context.Context, key string, start, end int64) ([]logentry.Entry, error) {
	list, exists, err := r.getList(ctx, nil, key)
	if err != nil || !exists {
		return nil, err
	}

	n, err := r.count(ctx, key, list.BaseSeq)
	if err != nil {
		return nil, err
	}
	from, to, ok := listindex.Bounds(start, end, n)
	if !ok {
		return nil, nil
	}

	snaps, err := r.liveQuery(key, list.BaseSeq).Offset(int(from)).Limit(int(to - from)).Documents(ctx).GetAll()
	if err != nil {
		return nil, r.unavailable(err, "failed to read entries", key)
	}

	entries := make([]logentry.Entry, 0, len(snaps))
	for _, snap := range snaps {
		var doc entryDoc
		if err := snap.DataTo(&doc); err != nil {
			logging.From(ctx).Warn("skip undecodable entry document", "log_key", key, logging.ErrAttr(err))
			continue
		}
		e, err := logentry.Parse(doc.Data)
		if err != nil {
			logging.From(ctx).Warn("skip corrupt log entry", "log_key", key, logging.ErrAttr(err))
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (r *Firestore) Len(ctx context.Context, key string) (int64, error) {
	list, exists, err := r.getList(ctx, nil, key)
	if err != nil || !exists {
		return 0, err
	}
	return r.count(ctx, key, list.BaseSeq)
}

func (r *Firestore) TrimTo(ctx context.Context, key string, start, end int64) error {
	list, exists, err := r.getList(ctx, nil, key)
	if err != nil || !exists {
		return err
	}
	n, err := r.count(ctx, key, list.BaseSeq)
	if err != nil {
		return err
	}

	from, to, ok := listindex.Bounds(start, end, n)
	if !ok {
		return r.DeleteAll(ctx, key)
	}

	var refs []*firestore.DocumentRef
	if from > 0 {
		head, err := r.liveQuery(key, list.BaseSeq).Limit(int(from)).Documents(ctx).GetAll()
		if err != nil {
			return r.unavailable(err, "failed to read trim head", key)
		}
		for _, snap := range head {
			refs = append(refs, snap.Ref)
		}
	}
	if to < n {
		tail, err := r.liveQuery(key, list.BaseSeq).Offset(int(to)).Documents(ctx).GetAll()
		if err != nil {
			return r.unavailable(err, "failed to read trim tail", key)
		}
		for _, snap := range tail {
			refs = append(refs, snap.Ref)
		}
	}

	return r.deleteRefs(ctx, key, refs)
}

func (r *Firestore) Remove(ctx context.Context, key string, ids ...types.EntryID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	list, exists, err := r.getList(ctx, nil, key)
	if err != nil || !exists {
		return 0, err
	}

	var refs []*firestore.DocumentRef
	for i := 0; i < len(ids); i += inQueryLimit {
		chunk := ids[i:min(i+inQueryLimit, len(ids))]
		snaps, err := r.entriesRef(key).Where("entry_id", "in", types.EntryIDs(chunk)).Documents(ctx).GetAll()
		if err != nil {
			return 0, r.unavailable(err, "failed to find entries to remove", key)
		}
		for _, snap := range snaps {
			var doc entryDoc
			if err := snap.DataTo(&doc); err == nil && doc.Seq >= list.BaseSeq {
				refs = append(refs, snap.Ref)
			}
		}
	}

	if err := r.deleteRefs(ctx, key, refs); err != nil {
		return 0, err
	}
	return len(refs), nil
}

func (r *Firestore) DeleteAll(ctx context.Context, key string) error {
	snaps, err := r.entriesRef(key).Documents(ctx).GetAll()
	if err != nil {
		return r.unavailable(err, "failed to list entries", key)
	}
	refs := make([]*firestore.DocumentRef, 0, len(snaps)+1)
	for _, snap := range snaps {
		refs = append(refs, snap.Ref)
	}
	refs = append(refs, r.listRef(key))
	return r.deleteRefs(ctx, key, refs)
}

// SwapFrom copies the temp list behind the live tail and moves the live
// base onto the copy in one transaction, so readers see either the old list
// or the rewritten one and a failed swap leaves the live list untouched.
// Entries appended to the live list after the transaction stay visible.
func (r *Firestore) SwapFrom(ctx context.Context, tempKey, liveKey string) error {
	tempList, exists, err := r.getList(ctx, nil, tempKey)
	if err != nil {
		return err
	}
	if !exists {
		return r.eb.New("swap source does not exist",
			goerr.V("temp_key", tempKey), goerr.TV(errs.LogKeyKey, liveKey))
	}

	snaps, err := r.liveQuery(tempKey, tempList.BaseSeq).Documents(ctx).GetAll()
	if err != nil {
		return r.unavailable(err, "failed to read temp entries", liveKey)
	}
	docs := make([]entryDoc, len(snaps))
	for i, snap := range snaps {
		if err := snap.DataTo(&docs[i]); err != nil {
			return r.eb.Wrap(err, "failed to decode temp entry", goerr.TV(errs.LogKeyKey, liveKey))
		}
	}

	var base int64
	err = r.db.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		list, _, err := r.getList(ctx, tx, liveKey)
		if err != nil {
			return err
		}
		base = list.NextSeq
		for i, doc := range docs {
			doc.Seq = base + int64(i)
			if err := tx.Set(r.entriesRef(liveKey).Doc(seqDocID(doc.Seq)), doc); err != nil {
				return err
			}
		}
		list.NextSeq = base + int64(len(docs))
		list.BaseSeq = base
		return tx.Set(r.listRef(liveKey), list)
	})
	if err != nil {
		return r.unavailable(err, "failed to swap list", liveKey)
	}

	stale, err := r.entriesRef(liveKey).Where("seq", "<", base).Documents(ctx).GetAll()
	if err != nil {
		logging.From(ctx).Warn("failed to list stale entries after swap", "log_key", liveKey, logging.ErrAttr(err))
	} else {
		refs := make([]*firestore.DocumentRef, 0, len(stale))
		for _, snap := range stale {
			refs = append(refs, snap.Ref)
		}
		if err := r.deleteRefs(ctx, liveKey, refs); err != nil {
			logging.From(ctx).Warn("failed to delete stale entries after swap", "log_key", liveKey, logging.ErrAttr(err))
		}
	}

	return r.DeleteAll(ctx, tempKey)
}

func (r *Firestore) deleteRefs(ctx context.Context, key string, refs []*firestore.DocumentRef) error {
	if len(refs) == 0 {
		return nil
	}

	bw := r.db.BulkWriter(ctx)
	var jobs []*firestore.BulkWriterJob
	for _, ref := range refs {
		job, err := bw.Delete(ref)
		if err != nil {
			bw.End()
			return r.unavailable(err, "failed to delete document", key)
		}
		jobs = append(jobs, job)
	}
	bw.End()

	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return r.unavailable(err, "failed to commit bulk writer job", key)
		}
	}
	return nil
}

func (r *Firestore) TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ref := r.db.Collection(r.collection + collectionLocks).Doc(key)
	acquired := false

	err := r.db.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		acquired = false
		now := clock.Now(ctx)

		snap, err := tx.Get(ref)
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}
		if err == nil && snap.Exists() {
			var doc lockDoc
			if err := snap.DataTo(&doc); err != nil {
				return err
			}
			if now.Before(doc.ExpiresAt) {
				return nil
			}
		}

		acquired = true
		return tx.Set(ref, lockDoc{Token: uuid.NewString(), ExpiresAt: now.Add(ttl)})
	})
	if err != nil {
		return false, r.unavailable(err, "failed to acquire lock", key)
	}
	return acquired, nil
}

func (r *Firestore) Release(ctx context.Context, key string) error {
	if _, err := r.db.Collection(r.collection + collectionLocks).Doc(key).Delete(ctx); err != nil {
		return r.unavailable(err, "failed to release lock", key)
	}
	return nil
}

// extractCount extracts an integer count from a Firestore aggregation result.
// It handles both int64 and *firestorepb.Value types that can be returned by the Firestore client.
func extractCount(result firestore.AggregationResult, alias string) (int64, error) {
	countVal, ok := result[alias]
	if !ok {
		return 0, goerr.New("count alias not found in aggregation result",
			goerr.V("alias", alias),
			goerr.T(errs.TagInternal))
	}

	switch v := countVal.(type) {
	case int64:
		return v, nil
	case *firestorepb.Value:
		if v != nil {
			if _, okType := v.ValueType.(*firestorepb.Value_IntegerValue); okType {
				return v.GetIntegerValue(), nil
			}
		}
		return 0, goerr.New("firestorepb.Value from count is not an integer type",
			goerr.V("alias", alias),
			goerr.T(errs.TagInternal))
	default:
		return 0, goerr.New("unexpected count value type",
			goerr.V("type", fmt.Sprintf("%T", countVal)),
			goerr.V("alias", alias),
			goerr.T(errs.TagInternal))
	}
}
