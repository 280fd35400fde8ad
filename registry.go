package bulk

import (
	"encoding/json"
	"sort"

	"go.etcd.io/bbolt"

	"github.com/input-output-hk/catalyst-forge-libs/storage/bulk/bulktypes"
	"github.com/input-output-hk/catalyst-forge-libs/storage/bulk/errors"
)

var jobsBucket = []byte("jobs")

// Registry is a persistent store of interrupted transfer jobs, keyed by
// job identity hash. It is backed by a single bbolt file and is safe for
// concurrent use.
type Registry struct {
	db *bbolt.DB
}

// OpenRegistry opens (creating if necessary) the job registry at path.
func OpenRegistry(path string) (*Registry, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, errors.NewPathError("registry.open", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(jobsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.NewPathError("registry.open", path, err)
	}

	return &Registry{db: db}, nil
}

// Put persists a job record, replacing any previous record with the
// same hash.
func (r *Registry) Put(rec *bulktypes.JobRecord) error {
	if rec == nil || rec.Hash == "" {
		return errors.NewError("registry.put", errors.ErrInvalidInput).WithMessage("record must have a hash")
	}
	return r.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(rec)
		if err != nil {
			return errors.NewError("registry.put", err).WithPath(rec.Hash)
		}
		if err := tx.Bucket(jobsBucket).Put([]byte(rec.Hash), data); err != nil {
			return errors.NewError("registry.put", err).WithPath(rec.Hash)
		}
		return nil
	})
}

// Get returns the persisted record for hash, or an error wrapping
// errors.ErrJobNotFound.
func (r *Registry) Get(hash string) (*bulktypes.JobRecord, error) {
	var rec bulktypes.JobRecord
	err := r.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(jobsBucket).Get([]byte(hash))
		if data == nil {
			return errors.NewError("registry.get", errors.ErrJobNotFound).WithPath(hash)
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Delete removes the record for hash. Deleting a hash that is not
// present is not an error.
func (r *Registry) Delete(hash string) error {
	return r.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(jobsBucket).Delete([]byte(hash))
	})
}

// Jobs returns every persisted record, ordered by hash.
func (r *Registry) Jobs() ([]*bulktypes.JobRecord, error) {
	var recs []*bulktypes.JobRecord
	err := r.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(jobsBucket).ForEach(func(_, data []byte) error {
			var rec bulktypes.JobRecord
			if err := json.Unmarshal(data, &rec); err != nil {
				return err
			}
			recs = append(recs, &rec)
			return nil
		})
	})
	if err != nil {
		return nil, errors.NewError("registry.jobs", err)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].Hash < recs[j].Hash })
	return recs, nil
}

// LoadJobs returns every persisted record keyed by job hash. It is a
// convenience over Jobs for callers that look records up by identity.
func LoadJobs(r *Registry) (map[string]*bulktypes.JobRecord, error) {
	recs, err := r.Jobs()
	if err != nil {
		return nil, err
	}
	jobs := make(map[string]*bulktypes.JobRecord, len(recs))
	for _, rec := range recs {
		jobs[rec.Hash] = rec
	}
	return jobs, nil
}

// Close closes the underlying database.
func (r *Registry) Close() error {
	return r.db.Close()
}
