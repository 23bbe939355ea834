package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"

	"github.com/angelmondragon/mediagateway/pkg/documents"
	pkgerrors "github.com/angelmondragon/mediagateway/pkg/errors"
	"github.com/angelmondragon/mediagateway/pkg/logger"
)

const DefaultKey = "catalog"

// Service is the document sync store for the single catalog document. Saves
// overwrite the whole document; concurrent saves race and the last one wins.
type Service interface {
	// Load returns the stored document verbatim. found is false when nothing
	// has been written yet.
	Load(ctx context.Context) (raw json.RawMessage, found bool, err error)
	Save(ctx context.Context, raw []byte) error
	LoadDocument(ctx context.Context) (Document, error)
	SaveDocument(ctx context.Context, doc Document) error
	Ping(ctx context.Context) error
}

type service struct {
	store documents.Store
	key   string
	logg  *logger.Logger
}

// NewService builds the catalog service. A nil store is accepted and makes
// every call fail with CONFIGURATION_ERROR.
func NewService(store documents.Store, key string, logg *logger.Logger) Service {
	if key == "" {
		key = DefaultKey
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{store: store, key: key, logg: logg}
}

func (s *service) requireStore() error {
	if s.store == nil {
		return pkgerrors.New(pkgerrors.CodeConfiguration, "document store is not configured")
	}
	return nil
}

func (s *service) Load(ctx context.Context) (json.RawMessage, bool, error) {
	if err := s.requireStore(); err != nil {
		return nil, false, err
	}
	body, err := s.store.Get(ctx, s.key)
	if errors.Is(err, documents.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading catalog failed")
	}
	return json.RawMessage(body), true, nil
}

func (s *service) Save(ctx context.Context, raw []byte) error {
	if err := s.requireStore(); err != nil {
		return err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || !json.Valid(raw) {
		return pkgerrors.New(pkgerrors.CodeValidation, "catalog must be a JSON document")
	}
	if err := s.store.Set(ctx, s.key, string(raw)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "saving catalog failed")
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"key": s.key, "bytes": len(raw)}), "catalog saved")
	return nil
}

func (s *service) LoadDocument(ctx context.Context) (Document, error) {
	raw, found, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	if !found {
		return Document{}, nil
	}
	doc, err := ParseDocument(raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "stored catalog is not an object")
	}
	return doc, nil
}

func (s *service) SaveDocument(ctx context.Context, doc Document) error {
	raw, err := doc.Marshal()
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding catalog failed")
	}
	return s.Save(ctx, raw)
}

func (s *service) Ping(ctx context.Context) error {
	if err := s.requireStore(); err != nil {
		return err
	}
	return s.store.Ping(ctx)
}
