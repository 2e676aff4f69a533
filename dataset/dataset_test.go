package dataset

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleCSV = `id,title,popularity,vote_average,vote_count,release_date
238,The Godfather,98.5,8.7,17000,1972-03-14
,,12.0,5.0,10,2001-01-01
129,Spirited Away,85.1,8.5,14000,2001-07-20
603,The Matrix,,7.9,,1999-03-30
`

func TestReadMovies(t *testing.T) {
	as := require.New(t)

	pairs, err := ReadMovies(strings.NewReader(sampleCSV), 0)
	as.NoError(err)
	// the untitled row is skipped
	as.Len(pairs, 3)

	as.Equal([]byte("The Godfather"), pairs[0].Key)
	as.Equal("238", pairs[0].Value.ID)
	as.NotNil(pairs[0].Value.Popularity)
	as.InDelta(98.5, *pairs[0].Value.Popularity, 1e-9)
	as.NotNil(pairs[0].Value.VoteCount)
	as.Equal(17000, *pairs[0].Value.VoteCount)
	as.Equal("1972-03-14", pairs[0].Value.ReleaseDate)

	// blank numeric fields stay null
	as.Nil(pairs[2].Value.Popularity)
	as.Nil(pairs[2].Value.VoteCount)
}

func TestReadMoviesLimit(t *testing.T) {
	as := require.New(t)

	pairs, err := ReadMovies(strings.NewReader(sampleCSV), 2)
	as.NoError(err)
	as.Len(pairs, 2)
	as.Equal([]byte("Spirited Away"), pairs[1].Key)
}

func TestSchemaError(t *testing.T) {
	as := require.New(t)

	_, err := ReadMovies(strings.NewReader("id,popularity\n1,2.0\n"), 0)
	as.ErrorIs(err, ErrSchema)
}

func TestRecordEncodeDecode(t *testing.T) {
	as := require.New(t)

	pairs, err := ReadMovies(strings.NewReader(sampleCSV), 1)
	as.NoError(err)

	decoded, err := Decode(pairs[0].Value.Encode())
	as.NoError(err)
	as.Equal(pairs[0].Value, decoded)

	// equal records encode to equal bytes, which determinism relies on
	as.Equal(pairs[0].Value.Encode(), decoded.Encode())
}
