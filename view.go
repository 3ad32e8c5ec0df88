package clipwatch

import (
	"strconv"

	"github.com/jpalmerr/clipwatch/page"
)

// TextSetter is an element whose text content can be replaced.
type TextSetter interface {
	SetText(text string)
}

// ProgressSetter is a progress bar element: its width is an inline style and
// its value is mirrored to an ARIA attribute.
type ProgressSetter interface {
	SetStyle(property, value string)
	SetAttribute(name, value string)
}

// ClassToggler is an element whose visibility is driven by a class.
type ClassToggler interface {
	AddClass(name string)
	RemoveClass(name string)
}

// View is the set of page elements a [Poller] writes to.
//
// Any field may be nil when the page lacks that element. Progress updates
// need both Status and Progress; the completed transition needs both
// Processing and Result. A missing half skips the whole update.
type View struct {
	// Status receives the payload message.
	Status TextSetter

	// Progress receives the payload progress as width and aria-valuenow.
	Progress ProgressSetter

	// Processing is hidden once the job completes.
	Processing ClassToggler

	// Result is shown once the job completes.
	Result ClassToggler
}

// DocumentView binds a [View] to the standard elements of a page document.
// Elements the document does not contain are left nil.
func DocumentView(doc *page.Document) View {
	var v View
	if doc == nil {
		return v
	}
	if el := doc.Element(page.StatusID); el != nil {
		v.Status = el
	}
	if el := doc.Element(page.ProgressID); el != nil {
		v.Progress = el
	}
	if el := doc.Element(page.ProcessingContainerID); el != nil {
		v.Processing = el
	}
	if el := doc.Element(page.ResultContainerID); el != nil {
		v.Result = el
	}
	return v
}

// applyProgress writes message and progress to the view.
func (v View) applyProgress(p Payload) {
	if v.Status == nil || v.Progress == nil {
		return
	}
	value := formatProgress(p.Progress)
	v.Status.SetText(p.Message)
	v.Progress.SetStyle("width", value+"%")
	v.Progress.SetAttribute("aria-valuenow", value)
}

// showCompleted hides the processing container and reveals the result.
func (v View) showCompleted() {
	if v.Processing == nil || v.Result == nil {
		return
	}
	v.Processing.AddClass(page.HiddenClass)
	v.Result.RemoveClass(page.HiddenClass)
}

// formatProgress renders a percentage the way a browser stringifies a JSON
// number: 50 → "50", 12.5 → "12.5".
func formatProgress(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}
