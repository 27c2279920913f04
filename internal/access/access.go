// Package access is the single authorization choke point. Every operation on
// an existing folder or note passes through Gate.Authorize before mutating
// anything. The gate holds no state of its own; it resolves ownership and
// grants through the two narrow source interfaces, so it can run inside
// whatever transaction the caller already opened.
package access

import (
	"context"

	"github.com/devnotes/devnotes/internal/db"
	"github.com/devnotes/devnotes/internal/errs"
)

// Kind identifies the entity type a reference points at.
type Kind string

const (
	KindFolder Kind = "folder"
	KindNote   Kind = "note"
)

// EntityRef names one folder or note.
type EntityRef struct {
	Kind Kind
	ID   string
}

// FolderRef builds a reference to a folder.
func FolderRef(id string) EntityRef { return EntityRef{Kind: KindFolder, ID: id} }

// NoteRef builds a reference to a note.
func NoteRef(id string) EntityRef { return EntityRef{Kind: KindNote, ID: id} }

// Capability is a requested action on an entity.
type Capability string

const (
	CapabilityRead   Capability = "read"
	CapabilityWrite  Capability = "write"
	CapabilityDelete Capability = "delete"
	CapabilityShare  Capability = "share"
)

// Level is the resolved relationship between a user and an entity, ordered by
// permissiveness.
type Level int

const (
	LevelNone Level = iota
	LevelSharedReadOnly
	LevelSharedReadWrite
	LevelOwner
)

func (l Level) String() string {
	switch l {
	case LevelOwner:
		return "owner"
	case LevelSharedReadWrite:
		return "shared_read_write"
	case LevelSharedReadOnly:
		return "shared_read_only"
	default:
		return "none"
	}
}

// OwnerSource resolves the owning user of an entity. Implemented by the
// hierarchy store. Returns "" when the entity does not exist.
type OwnerSource interface {
	EntityOwner(ctx context.Context, q db.Queryer, ref EntityRef) (string, error)
}

// GrantSource resolves the most permissive grant a user holds on an entity.
// Implemented by the sharing engine.
type GrantSource interface {
	GrantLevel(ctx context.Context, q db.Queryer, ref EntityRef, userID string) (Level, error)
}

// Gate evaluates (caller, entity, capability) against the policy table:
//
//	capability  owner  shared-read-only  shared-read-write
//	read        allow  allow             allow
//	write       allow  deny              allow
//	delete      allow  deny              deny
//	share       allow  deny              deny
type Gate struct {
	owners OwnerSource
	grants GrantSource
}

// NewGate builds a gate over the given ownership and grant sources.
func NewGate(owners OwnerSource, grants GrantSource) *Gate {
	return &Gate{owners: owners, grants: grants}
}

// EffectiveAccess resolves the caller's level for the entity: owner if they
// own it, otherwise the most permissive grant addressed to them, else none.
// A missing entity resolves to none.
func (g *Gate) EffectiveAccess(ctx context.Context, q db.Queryer, ref EntityRef, userID string) (Level, error) {
	owner, err := g.owners.EntityOwner(ctx, q, ref)
	if err != nil {
		return LevelNone, err
	}
	if owner == "" {
		return LevelNone, nil
	}
	if owner == userID {
		return LevelOwner, nil
	}
	return g.grants.GrantLevel(ctx, q, ref, userID)
}

// Authorize returns nil when callerID may exercise capability on the entity.
// A caller with no relation to the entity gets not_found (the entity is
// invisible to them); a caller with some relation but not enough gets
// forbidden.
func (g *Gate) Authorize(ctx context.Context, q db.Queryer, callerID string, ref EntityRef, capability Capability) error {
	level, err := g.EffectiveAccess(ctx, q, ref, callerID)
	if err != nil {
		return err
	}
	if level == LevelNone {
		return errs.New(errs.NotFound, string(ref.Kind)+" not found")
	}
	if allowed(level, capability) {
		return nil
	}
	return errs.New(errs.Forbidden, string(capability)+" on "+string(ref.Kind)+" requires a more permissive grant")
}

func allowed(level Level, capability Capability) bool {
	switch capability {
	case CapabilityRead:
		return level >= LevelSharedReadOnly
	case CapabilityWrite:
		return level >= LevelSharedReadWrite
	case CapabilityDelete, CapabilityShare:
		return level == LevelOwner
	default:
		return false
	}
}
