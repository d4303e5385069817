package library

import (
	"log/slog"

	"github.com/mmcdole/mangashelf/internal/domain"
	"github.com/mmcdole/mangashelf/internal/view"
)

// Service is the entry point the UI layer holds: commands, queries and the
// two view builders over one store.
type Service struct {
	*Commands
	*Queries

	store domain.Store
	pager *view.Pager
}

// NewService wires commands and queries around store.
func NewService(repo domain.CatalogRepository, store domain.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		Commands: NewCommands(repo, store, logger),
		Queries:  NewQueries(store, logger),
		store:    store,
		pager:    view.NewPager(store),
	}
}

// BuildView loads the whole catalog and orders it.
func (s *Service) BuildView(sortType domain.SortType) (view.View, error) {
	items, err := s.store.GetAll()
	if err != nil {
		return view.View{}, err
	}
	return view.BuildView(items, sortType), nil
}

// BuildPage reads one page straight from the store.
func (s *Service) BuildPage(sortType domain.SortType, limit, offset int) (view.Page, error) {
	return s.pager.Page(sortType, limit, offset)
}

// Count returns the number of cached records.
func (s *Service) Count() (int, error) {
	return s.store.Count()
}
