package persistence

import (
	"context"
	"fmt"

	"github.com/stretchr/testify/suite"
)

// CacheSuite checks the Cache contract. Each backend test sets newCache and
// runs the suite against it.
type CacheSuite struct {
	suite.Suite
	newCache func() Cache
	cache    Cache
	ctx      context.Context
}

func (s *CacheSuite) SetupTest() {
	s.ctx = context.Background()
	s.cache = s.newCache()
	s.Require().NoError(s.cache.Clear(s.ctx))
}

func (s *CacheSuite) TearDownTest() {
	s.NoError(s.cache.Close())
}

func (s *CacheSuite) TestGetMissingKey() {
	v, ok, err := s.cache.Get(s.ctx, "identity")
	s.Require().NoError(err)
	s.False(ok)
	s.Empty(v)
}

func (s *CacheSuite) TestSetThenGet() {
	s.Require().NoError(s.cache.Set(s.ctx, "identity", "bseed"))

	v, ok, err := s.cache.Get(s.ctx, "identity")
	s.Require().NoError(err)
	s.True(ok)
	s.Equal("bseed", v)
}

func (s *CacheSuite) TestSetOverwrites() {
	s.Require().NoError(s.cache.Set(s.ctx, "k-token", "first"))
	s.Require().NoError(s.cache.Set(s.ctx, "k-token", "second"))

	v, ok, err := s.cache.Get(s.ctx, "k-token")
	s.Require().NoError(err)
	s.True(ok)
	s.Equal("second", v)
}

func (s *CacheSuite) TestEmptyValueIsPresent() {
	s.Require().NoError(s.cache.Set(s.ctx, "empty", ""))

	_, ok, err := s.cache.Get(s.ctx, "empty")
	s.Require().NoError(err)
	s.True(ok)
}

func (s *CacheSuite) TestDelete() {
	s.Require().NoError(s.cache.Set(s.ctx, "a", "1"))
	s.Require().NoError(s.cache.Delete(s.ctx, "a"))

	_, ok, err := s.cache.Get(s.ctx, "a")
	s.Require().NoError(err)
	s.False(ok)

	// Deleting a missing key is not an error.
	s.NoError(s.cache.Delete(s.ctx, "never-set"))
}

func (s *CacheSuite) TestClear() {
	for i := 0; i < 5; i++ {
		s.Require().NoError(s.cache.Set(s.ctx, fmt.Sprintf("key-%d", i), "v"))
	}
	s.Require().NoError(s.cache.Clear(s.ctx))

	for i := 0; i < 5; i++ {
		_, ok, err := s.cache.Get(s.ctx, fmt.Sprintf("key-%d", i))
		s.Require().NoError(err)
		s.False(ok)
	}
}

func (s *CacheSuite) TestValuesWithJSONRoundTrip() {
	value := `{"thread_id":"0b8e2f8c-1111-4c3e-9c1e-2d5a4a9b7f10","state":"requested"}`
	s.Require().NoError(s.cache.Set(s.ctx, "id-user_thread", value))

	v, ok, err := s.cache.Get(s.ctx, "id-user_thread")
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(value, v)
}
