package core

import (
	"context"
	"strings"

	"clinicdesk/pkg/domain"
)

// AddNote attaches a note to a patient or an appointment. A blank author
// falls back to the actor on ctx.
func (s *Service) AddNote(ctx context.Context, owner domain.Owner, text, author string) (Note, error) {
	var created Note
	err := s.mutate(ctx, "add_note", func(tx Transaction) error {
		var err error
		created, err = tx.CreateNote(Note{Owner: owner, Text: text, Author: strings.TrimSpace(author)})
		return err
	})
	if err != nil {
		return Note{}, err
	}
	s.logged(ctx, "add_note", domain.EntityNote, created.ID)
	return created, nil
}

// UpdateNote edits the text of a note.
func (s *Service) UpdateNote(ctx context.Context, id string, patch domain.NotePatch) (Note, error) {
	var updated Note
	err := s.mutate(ctx, "update_note", func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateNote(id, patch.Apply)
		return err
	})
	if err != nil {
		return Note{}, err
	}
	s.logged(ctx, "update_note", domain.EntityNote, id)
	return updated, nil
}

// GetNote looks up a note by id.
func (s *Service) GetNote(ctx context.Context, id string) (Note, bool) {
	var (
		note Note
		ok   bool
	)
	_ = s.read(ctx, "get_note", func(v TransactionView) error {
		note, ok = v.FindNote(id)
		return nil
	})
	return note, ok
}

// ListNotes returns the notes attached to owner, newest first.
func (s *Service) ListNotes(ctx context.Context, owner domain.Owner) []Note {
	var out []Note
	_ = s.read(ctx, "list_notes", func(v TransactionView) error {
		for _, n := range v.ListNotes() {
			if n.Owner.Is(owner) {
				out = append(out, n)
			}
		}
		return nil
	})
	sortNotes(out)
	return out
}

// DeleteNote removes a note by id.
func (s *Service) DeleteNote(ctx context.Context, id string) (bool, error) {
	return s.deleted(ctx, "delete_note", func(tx Transaction) (Cascade, error) {
		return single(domain.EntityNote, id), tx.DeleteNote(id)
	})
}
