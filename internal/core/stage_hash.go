package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// DuplicateTimeLayout formats the prior import time in the duplicate error.
const DuplicateTimeLayout = "2006-01-02 15:04"

// HashStage digests the raw upload and rejects content the tenant already
// imported. Rolled-back sessions do not count.
//
// The lookup and the later insert are not atomic: two identical uploads
// racing each other can both pass.
type HashStage struct{}

func (HashStage) Name() string { return "hash" }

func (HashStage) Execute(ctx context.Context, ic *ImportContext) error {
	if ic.File == nil {
		return nil
	}
	if _, err := ic.File.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind upload: %w", err)
	}

	h := sha256.New()
	counter := NewCountingReader(ic.File)
	if _, err := io.Copy(h, counter); err != nil {
		return fmt.Errorf("hash upload: %w", err)
	}
	if _, err := ic.File.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind upload: %w", err)
	}

	if counter.BytesRead == 0 {
		return nil
	}
	ic.FileSize = counter.BytesRead
	ic.FileHash = hex.EncodeToString(h.Sum(nil))

	existing, err := ic.UnitOfWork().Sessions().FindActive(ctx, ic.TenantID, ic.FileHash)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("find session by hash: %w", err)
	}

	ic.Fail(0, ErrColumnFile, fmt.Sprintf(
		"This file has already been imported on %s (Session ID: %s)",
		existing.ImportedAt.UTC().Format(DuplicateTimeLayout), existing.ID,
	))
	return nil
}
