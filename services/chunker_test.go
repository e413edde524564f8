package services

import (
	"strings"
	"testing"

	"cognichat/models"
)

func doc(id string, n int) models.Document {
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteByte(byte('a' + i%26))
	}
	return models.Document{
		ID:       id,
		Text:     b.String(),
		Metadata: map[string]string{models.MetadataSource: "https://example.com/" + id},
	}
}

func TestNewChunkerValidation(t *testing.T) {
	cases := []struct {
		max, overlap int
		ok           bool
	}{
		{1000, 0, true},
		{1000, 999, true},
		{0, 0, false},
		{-5, 0, false},
		{10, -1, false},
		{10, 10, false},
	}
	for _, c := range cases {
		_, err := NewChunker(c.max, c.overlap)
		if (err == nil) != c.ok {
			t.Errorf("NewChunker(%d, %d) err = %v, want ok=%v", c.max, c.overlap, err, c.ok)
		}
	}
}

func TestSplitThreeDocumentsNoOverlap(t *testing.T) {
	docs := []models.Document{doc("d1", 1500), doc("d2", 400), doc("d3", 2200)}

	chunks, err := Split(docs, 1000, 0)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}

	perDoc := map[string][]models.Chunk{}
	for _, c := range chunks {
		if RuneLen(c.Text) > 1000 {
			t.Fatalf("chunk %s has %d runes", c.ID, RuneLen(c.Text))
		}
		perDoc[c.DocumentID] = append(perDoc[c.DocumentID], c)
	}

	d1 := perDoc["d1"]
	if len(d1) != 2 || RuneLen(d1[0].Text) != 1000 || RuneLen(d1[1].Text) != 500 {
		t.Fatalf("document 1 split wrong: %d chunks", len(d1))
	}
	if len(perDoc["d2"]) != 1 {
		t.Fatalf("document 2: got %d chunks, want 1", len(perDoc["d2"]))
	}
	if len(perDoc["d3"]) != 3 {
		t.Fatalf("document 3: got %d chunks, want 3", len(perDoc["d3"]))
	}
	if len(chunks) != 6 {
		t.Fatalf("got %d chunks, want 6", len(chunks))
	}
}

func TestSplitOverlapIsExact(t *testing.T) {
	for _, tc := range []struct{ size, max, overlap int }{
		{2500, 1000, 200},
		{1000, 100, 10},
		{37, 10, 9},
		{10, 10, 3},
	} {
		d := doc("x", tc.size)
		chunks, err := Split([]models.Document{d}, tc.max, tc.overlap)
		if err != nil {
			t.Fatal(err)
		}

		for i, c := range chunks {
			if RuneLen(c.Text) > tc.max {
				t.Fatalf("%+v: chunk %d too long", tc, i)
			}
			if c.Index != i {
				t.Fatalf("%+v: chunk %d has index %d", tc, i, c.Index)
			}
			if i == 0 {
				continue
			}
			prev := []rune(chunks[i-1].Text)
			cur := []rune(c.Text)
			tail := string(prev[len(prev)-tc.overlap:])
			head := string(cur[:tc.overlap])
			if tail != head {
				t.Fatalf("%+v: chunks %d/%d overlap %q vs %q", tc, i-1, i, tail, head)
			}
		}

		// Reassembling without the overlaps gives back the document.
		var b strings.Builder
		for i, c := range chunks {
			r := []rune(c.Text)
			if i > 0 {
				r = r[tc.overlap:]
			}
			b.WriteString(string(r))
		}
		if b.String() != d.Text {
			t.Fatalf("%+v: reassembled text differs", tc)
		}
	}
}

func TestSplitCountsRunesNotBytes(t *testing.T) {
	d := models.Document{ID: "u", Text: strings.Repeat("héllo wörld ", 30)}
	chunks, err := Split([]models.Document{d}, 50, 5)
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range chunks {
		if RuneLen(c.Text) > 50 {
			t.Fatalf("chunk has %d runes", RuneLen(c.Text))
		}
		if !strings.ContainsRune(c.Text, 'é') && !strings.ContainsRune(c.Text, 'ö') {
			t.Fatalf("chunk lost multibyte characters: %q", c.Text)
		}
	}
}

func TestSplitSkipsBlankDocumentsAndCopiesMetadata(t *testing.T) {
	docs := []models.Document{
		{ID: "blank", Text: "   \n\t"},
		doc("real", 10),
	}
	chunks, err := Split(docs, 4, 1)
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range chunks {
		if c.DocumentID != "real" {
			t.Fatalf("unexpected chunk from %s", c.DocumentID)
		}
	}

	chunks[0].Metadata[models.MetadataSource] = "mutated"
	if docs[1].Metadata[models.MetadataSource] == "mutated" {
		t.Fatal("chunk metadata aliases the document's map")
	}
	if chunks[1].Source() != "https://example.com/real" {
		t.Fatalf("chunk source = %q", chunks[1].Source())
	}
}
