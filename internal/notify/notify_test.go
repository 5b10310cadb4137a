package notify

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

type recordingPresenter struct {
	errors  []ErrorKind
	cleared []ErrorKind
	success int
}

func (r *recordingPresenter) ShowError(kind ErrorKind)  { r.errors = append(r.errors, kind) }
func (r *recordingPresenter) ShowSuccess()              { r.success++ }
func (r *recordingPresenter) ClearError(kind ErrorKind) { r.cleared = append(r.cleared, kind) }

func TestDedupShowsEachKindOnce(t *testing.T) {
	rec := &recordingPresenter{}
	d := NewDedup(rec)

	d.ShowError(ErrorNoRecipients)
	d.ShowError(ErrorNoRecipients)
	d.ShowError(ErrorNoRecipients)
	d.ShowError(ErrorAuthRequired)

	want := []ErrorKind{ErrorNoRecipients, ErrorAuthRequired}
	if diff := cmp.Diff(want, rec.errors); diff != "" {
		t.Errorf("shown errors mismatch (-want +got):\n%s", diff)
	}
}

func TestDedupResetsOnClear(t *testing.T) {
	rec := &recordingPresenter{}
	d := NewDedup(rec)

	d.ShowError(ErrorNoSender)
	d.ClearError(ErrorNoSender)
	d.ShowError(ErrorNoSender)

	want := []ErrorKind{ErrorNoSender, ErrorNoSender}
	if diff := cmp.Diff(want, rec.errors); diff != "" {
		t.Errorf("shown errors mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]ErrorKind{ErrorNoSender}, rec.cleared); diff != "" {
		t.Errorf("cleared errors mismatch (-want +got):\n%s", diff)
	}
}

func TestDedupClearIsQuietWhenNothingShowing(t *testing.T) {
	rec := &recordingPresenter{}
	d := NewDedup(rec)

	d.ClearError(ErrorAuthRequired)
	d.ClearError(ErrorNoSender)

	if len(rec.cleared) != 0 {
		t.Errorf("expected no clear forwarding, got %v", rec.cleared)
	}
}

func TestDedupPassesSuccessThrough(t *testing.T) {
	rec := &recordingPresenter{}
	d := NewDedup(rec)

	d.ShowSuccess()
	d.ShowSuccess()

	if rec.success != 2 {
		t.Errorf("success count = %d, want 2", rec.success)
	}
}
