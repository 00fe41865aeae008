package store

type Store struct {
	count int
	Total int
}

func (s *Store) bump() int {
	s.count++
	return s.count
}

func (s *Store) Sync(n int) {
	fresh := &Store{count: n}
	f := s.bump
	s.Total = f() + fresh.count + s.count
}
