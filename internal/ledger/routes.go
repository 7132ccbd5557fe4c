package ledger

import (
	"github.com/go-chi/chi/v5"
)

func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/entries", func(r chi.Router) {
		r.Get("/", h.ListEntries)
		r.Post("/", h.CreateEntry)
		r.Get("/{id}", h.GetEntry)
		r.Put("/{id}", h.UpdateEntry)
		r.Delete("/{id}", h.DeleteEntry)
	})
	r.Route("/journals", func(r chi.Router) {
		r.Get("/", h.ListJournals)
		r.Post("/", h.CreateJournal)
		r.Post("/validate", h.ValidateJournal)
		r.Get("/{id}", h.GetJournal)
		r.Put("/{id}", h.UpdateJournal)
		r.Delete("/{id}", h.DeleteJournal)
	})
	r.Post("/accounts/{id}/recalculate", h.Recalculate)
}
