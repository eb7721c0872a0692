package event

import (
    "errors"
    "reflect"
    "testing"
)

func TestValidate(t *testing.T) {
    ok := []Event{
        {Kind: KindOIDs, Updated: []string{"a"}},
        {Kind: KindOIDsWithAdds, Added: []string{"a"}, Deleted: []string{"b"}},
        {Kind: KindExtents, UpdatedTypes: []string{"Order"}},
    }
    for _, e := range ok {
        if err := e.Validate(); err != nil { t.Fatalf("validate %+v: %v", e, err) }
    }
    bad := []Event{
        {Kind: "nope"},
        {Kind: KindOIDs, Added: []string{"a"}},
        {Kind: KindExtents, Deleted: []string{"x"}},
    }
    for _, e := range bad {
        if err := e.Validate(); !errors.Is(err, ErrInvalid) { t.Fatalf("expected ErrInvalid for %+v, got %v", e, err) }
    }
}

func TestStructRoundtrip(t *testing.T) {
    in := Event{Kind: KindOIDsWithAdds, Origin: "node-a", Added: []string{"1"}, Updated: []string{"2", "3"}, DeletedTypes: []string{"Order"}}
    s, err := in.ToStruct()
    if err != nil { t.Fatalf("to struct: %v", err) }
    out, err := FromStruct(s)
    if err != nil { t.Fatalf("from struct: %v", err) }
    if !reflect.DeepEqual(in, out) { t.Fatalf("mismatch: %#v vs %#v", out, in) }
}

func TestListenerFunc(t *testing.T) {
    var got Event
    var l Listener = ListenerFunc(func(e Event) { got = e })
    l.Deliver(Event{Kind: KindExtents})
    if got.Kind != KindExtents { t.Fatalf("listener not invoked") }
    if !got.Empty() { t.Fatalf("expected empty event") }
}
