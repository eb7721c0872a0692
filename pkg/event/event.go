// Package event defines the commit notification exchanged between peers and
// the local listener contract the transport delivers decoded events to.
package event

import (
    "errors"
    "fmt"

    "google.golang.org/protobuf/types/known/structpb"
)

// Kind tells receivers how much detail a commit notification carries.
type Kind string

const (
    // KindOIDs lists updated and deleted object ids only.
    KindOIDs Kind = "oids"
    // KindOIDsWithAdds additionally lists the ids of newly persisted objects.
    KindOIDsWithAdds Kind = "oids-with-adds"
    // KindExtents carries only the type names whose extents changed.
    KindExtents Kind = "extents"
)

// Event is a commit notification: what changed in one committed transaction.
type Event struct {
    Kind         Kind     `json:"kind"`
    Origin       string   `json:"origin,omitempty"`
    Added        []string `json:"added,omitempty"`
    Updated      []string `json:"updated,omitempty"`
    Deleted      []string `json:"deleted,omitempty"`
    AddedTypes   []string `json:"added_types,omitempty"`
    UpdatedTypes []string `json:"updated_types,omitempty"`
    DeletedTypes []string `json:"deleted_types,omitempty"`
}

var ErrInvalid = errors.New("invalid event")

// Validate checks that the populated fields agree with Kind.
func (e Event) Validate() error {
    switch e.Kind {
    case KindOIDs:
        if len(e.Added) > 0 { return fmt.Errorf("%w: %s payload carries added ids", ErrInvalid, e.Kind) }
    case KindOIDsWithAdds:
    case KindExtents:
        if len(e.Added)+len(e.Updated)+len(e.Deleted) > 0 {
            return fmt.Errorf("%w: %s payload carries object ids", ErrInvalid, e.Kind)
        }
    default:
        return fmt.Errorf("%w: unknown kind %q", ErrInvalid, e.Kind)
    }
    return nil
}

// Empty reports whether the event names no objects and no types.
func (e Event) Empty() bool {
    return len(e.Added)+len(e.Updated)+len(e.Deleted)+len(e.AddedTypes)+len(e.UpdatedTypes)+len(e.DeletedTypes) == 0
}

// Listener receives events decoded from peers.
type Listener interface {
    Deliver(Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(Event)

func (f ListenerFunc) Deliver(e Event) { f(e) }

// ToStruct converts e into a protobuf Struct for the proto wire format.
func (e Event) ToStruct() (*structpb.Struct, error) {
    return structpb.NewStruct(map[string]any{
        "kind":          string(e.Kind),
        "origin":        e.Origin,
        "added":         toList(e.Added),
        "updated":       toList(e.Updated),
        "deleted":       toList(e.Deleted),
        "added_types":   toList(e.AddedTypes),
        "updated_types": toList(e.UpdatedTypes),
        "deleted_types": toList(e.DeletedTypes),
    })
}

// FromStruct is the inverse of ToStruct. Unknown fields are ignored.
func FromStruct(s *structpb.Struct) (Event, error) {
    if s == nil { return Event{}, fmt.Errorf("%w: nil struct", ErrInvalid) }
    f := s.GetFields()
    return Event{
        Kind:         Kind(f["kind"].GetStringValue()),
        Origin:       f["origin"].GetStringValue(),
        Added:        fromList(f["added"]),
        Updated:      fromList(f["updated"]),
        Deleted:      fromList(f["deleted"]),
        AddedTypes:   fromList(f["added_types"]),
        UpdatedTypes: fromList(f["updated_types"]),
        DeletedTypes: fromList(f["deleted_types"]),
    }, nil
}

func toList(in []string) []any {
    out := make([]any, len(in))
    for i, s := range in { out[i] = s }
    return out
}

func fromList(v *structpb.Value) []string {
    vals := v.GetListValue().GetValues()
    if len(vals) == 0 { return nil }
    out := make([]string, 0, len(vals))
    for _, x := range vals { out = append(out, x.GetStringValue()) }
    return out
}
