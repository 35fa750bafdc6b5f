package types

import (
	"encoding/json"
	"testing"
)

func TestDehydrated_MarshalPlain(t *testing.T) {
	d := &Dehydrated{Payload: "hi"}

	got, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(got) != `[["hi"]]` {
		t.Errorf("Marshal = %s, want %s", got, `[["hi"]]`)
	}
}

func TestDehydrated_MarshalWithDescriptor(t *testing.T) {
	d := &Dehydrated{
		Payload: Placeholder{},
		Refs:    []Descriptor{{Key: RootKey(), Kind: KindPromise, ID: 0}},
	}

	got, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(got) != `[[0],[null,0,0]]` {
		t.Errorf("Marshal = %s, want %s", got, `[[0],[null,0,0]]`)
	}
}

func TestDehydrated_MarshalFieldAndIndexKeys(t *testing.T) {
	d := &Dehydrated{
		Payload: map[string]any{"y": Placeholder{}},
		Refs: []Descriptor{
			{Key: Field("y"), Kind: KindPromise, ID: 1},
			{Key: Index(2), Kind: KindSequence, ID: 3},
		},
	}

	got, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	want := `[[{"y":0}],["y",0,1],[2,1,3]]`
	if string(got) != want {
		t.Errorf("Marshal = %s, want %s", got, want)
	}
}

func TestParseDehydrated_RoundTrip(t *testing.T) {
	line := `[[{"y":0}],["y",1,7]]`
	var raw any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	d, err := ParseDehydrated(raw)
	if err != nil {
		t.Fatalf("ParseDehydrated failed: %v", err)
	}

	payload, ok := d.Payload.(map[string]any)
	if !ok {
		t.Fatalf("Payload type = %T, want map", d.Payload)
	}
	if payload["y"] != float64(0) {
		t.Errorf("payload[y] = %v, want placeholder 0", payload["y"])
	}

	if len(d.Refs) != 1 {
		t.Fatalf("len(Refs) = %d, want 1", len(d.Refs))
	}
	ref := d.Refs[0]
	if name, ok := ref.Key.Field(); !ok || name != "y" {
		t.Errorf("Key = %v, want field y", ref.Key)
	}
	if ref.Kind != KindSequence {
		t.Errorf("Kind = %v, want sequence", ref.Kind)
	}
	if ref.ID != 7 {
		t.Errorf("ID = %d, want 7", ref.ID)
	}
}

func TestParseDehydrated_Malformed(t *testing.T) {
	cases := []struct {
		name string
		line string
	}{
		{"not array", `{"a":1}`},
		{"empty array", `[]`},
		{"bad payload wrapper", `[[1,2]]`},
		{"descriptor not triple", `[[0],[null,0]]`},
		{"unknown kind", `[[0],[null,9,0]]`},
		{"negative id", `[[0],[null,0,-1]]`},
		{"fractional id", `[[0],[null,0,1.5]]`},
		{"bool key", `[[0],[true,0,0]]`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var raw any
			if err := json.Unmarshal([]byte(tc.line), &raw); err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			if _, err := ParseDehydrated(raw); err == nil {
				t.Errorf("ParseDehydrated(%s) succeeded, want error", tc.line)
			}
		})
	}
}

func TestChunk_Marshal(t *testing.T) {
	withPayload := &Chunk{ID: 0, Status: PromiseFulfilled, Payload: &Dehydrated{Payload: float64(7)}, HasPayload: true}
	got, err := json.Marshal(withPayload)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(got) != `[0,0,[[7]]]` {
		t.Errorf("Marshal = %s, want %s", got, `[0,0,[[7]]]`)
	}

	terminal := &Chunk{ID: 4, Status: SequenceDone}
	got, err = json.Marshal(terminal)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(got) != `[4,0]` {
		t.Errorf("Marshal = %s, want %s", got, `[4,0]`)
	}
}

func TestParseChunk(t *testing.T) {
	var raw any
	if err := json.Unmarshal([]byte(`[3,1,[[2]]]`), &raw); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	chunk, err := ParseChunk(raw)
	if err != nil {
		t.Fatalf("ParseChunk failed: %v", err)
	}
	if chunk.ID != 3 {
		t.Errorf("ID = %d, want 3", chunk.ID)
	}
	if chunk.Status != SequenceValue {
		t.Errorf("Status = %d, want %d", chunk.Status, SequenceValue)
	}
	if !chunk.HasPayload {
		t.Error("HasPayload = false, want true")
	}
}

func TestParseChunk_Malformed(t *testing.T) {
	cases := []string{`5`, `[]`, `[1]`, `[1,2,3,4]`, `["a",0]`, `[0,"b"]`, `[-1,0]`}
	for _, line := range cases {
		var raw any
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			t.Fatalf("Unmarshal failed: %v", err)
		}
		if _, err := ParseChunk(raw); err == nil {
			t.Errorf("ParseChunk(%s) succeeded, want error", line)
		}
	}
}

func TestPlaceholder_Marshal(t *testing.T) {
	got, err := json.Marshal(Placeholder{})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(got) != "0" {
		t.Errorf("Marshal = %s, want 0", got)
	}
}
