package clipwatch

import (
	"testing"

	"github.com/jpalmerr/clipwatch/page"
)

// fakeElement records calls so views can be tested without a document.
type fakeElement struct {
	text    string
	style   map[string]string
	attrs   map[string]string
	added   []string
	removed []string
}

func newFakeElement() *fakeElement {
	return &fakeElement{style: map[string]string{}, attrs: map[string]string{}}
}

func (f *fakeElement) SetText(text string)             { f.text = text }
func (f *fakeElement) SetStyle(property, value string) { f.style[property] = value }
func (f *fakeElement) SetAttribute(name, value string) { f.attrs[name] = value }
func (f *fakeElement) AddClass(name string)            { f.added = append(f.added, name) }
func (f *fakeElement) RemoveClass(name string)         { f.removed = append(f.removed, name) }

func TestView_ApplyProgress(t *testing.T) {
	status, bar := newFakeElement(), newFakeElement()
	v := View{Status: status, Progress: bar}

	v.applyProgress(Payload{Status: "processing", Message: "Transcribing", Progress: 12.5})

	if status.text != "Transcribing" {
		t.Errorf("status text = %q, want Transcribing", status.text)
	}
	if bar.style["width"] != "12.5%" {
		t.Errorf("width = %q, want 12.5%%", bar.style["width"])
	}
	if bar.attrs["aria-valuenow"] != "12.5" {
		t.Errorf("aria-valuenow = %q, want 12.5", bar.attrs["aria-valuenow"])
	}
}

func TestView_ShowCompleted(t *testing.T) {
	processing, result := newFakeElement(), newFakeElement()
	View{Processing: processing, Result: result}.showCompleted()

	if len(processing.added) != 1 || processing.added[0] != page.HiddenClass {
		t.Errorf("processing added = %v, want [%s]", processing.added, page.HiddenClass)
	}
	if len(result.removed) != 1 || result.removed[0] != page.HiddenClass {
		t.Errorf("result removed = %v, want [%s]", result.removed, page.HiddenClass)
	}
}

func TestView_PartialViewsAreNoops(t *testing.T) {
	status := newFakeElement()
	View{Status: status}.applyProgress(Payload{Message: "x", Progress: 1})
	if status.text != "" {
		t.Error("progress update must be skipped without a progress element")
	}

	processing := newFakeElement()
	View{Processing: processing}.showCompleted()
	if len(processing.added) != 0 {
		t.Error("completion must be skipped without a result element")
	}

	// zero view never panics
	View{}.applyProgress(Payload{})
	View{}.showCompleted()
}

func TestDocumentView(t *testing.T) {
	v := DocumentView(page.NewDocument(page.StatusID))
	if v.Status == nil {
		t.Error("Status should be bound")
	}
	if v.Progress != nil || v.Processing != nil || v.Result != nil {
		t.Error("absent elements must stay nil interfaces")
	}

	if empty := DocumentView(nil); empty.Status != nil {
		t.Error("DocumentView(nil) should be empty")
	}
}

func TestFormatProgress(t *testing.T) {
	tests := map[float64]string{
		0:     "0",
		50:    "50",
		100:   "100",
		12.5:  "12.5",
		33.25: "33.25",
	}
	for in, want := range tests {
		if got := formatProgress(in); got != want {
			t.Errorf("formatProgress(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestPayload_Completed(t *testing.T) {
	for _, s := range []string{"pending", "downloading", "processing", "failed", "Completed", ""} {
		if (Payload{Status: s}).Completed() {
			t.Errorf("Payload{Status: %q}.Completed() = true", s)
		}
	}
	if !(Payload{Status: "completed"}).Completed() {
		t.Error("Payload{Status: completed}.Completed() = false")
	}
	if StateCompleted.String() != "completed" {
		t.Errorf("StateCompleted.String() = %q", StateCompleted.String())
	}
}
