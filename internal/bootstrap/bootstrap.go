// Package bootstrap parses the difficulty_bootstrap CSV input (spec 6
// "Inputs (files)") into the ordered chain of blocks an engine round seeds
// from.
package bootstrap

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/big"
	"os"
	"strconv"

	"github.com/bawdyanarchist/minesim/internal/simerrors"
	"github.com/bawdyanarchist/minesim/internal/simtypes"
)

// rootPoolID is the synthetic pool id attributed to every bootstrap block
// (spec 6: "the last row's blockId becomes the round start tip \"<height>_HH0\"").
const rootPoolID = "HH0"

// Row is one parsed difficulty_bootstrap record.
type Row struct {
	Height               int64
	Timestamp            int64
	Difficulty           *big.Int
	CumulativeDifficulty *big.Int
}

// Load reads and validates path, returning the ordered (oldest-first) chain
// of bootstrap blocks. minRows is typically W+L (spec 6: "≥ W + L rows").
func Load(path string, minRows int) ([]*simtypes.Block, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", simerrors.ErrConfig, path, err)
	}
	defer f.Close()
	return Parse(f, path, minRows)
}

// Parse reads difficulty_bootstrap CSV rows from r. path is used only for
// diagnostic messages (spec 7: "fail fast, identify file and row").
func Parse(r io.Reader, path string, minRows int) ([]*simtypes.Block, error) {
	rows, err := parseRows(r, path)
	if err != nil {
		return nil, err
	}
	if len(rows) < minRows {
		return nil, fmt.Errorf("%w: %s has %d rows, need at least %d (W+L)",
			simerrors.ErrBootstrap, path, len(rows), minRows)
	}
	for i := 1; i < len(rows); i++ {
		if rows[i].Height != rows[i-1].Height+1 {
			return nil, fmt.Errorf("%w: %s row %d: height %d does not follow %d consecutively",
				simerrors.ErrBootstrap, path, i+1, rows[i].Height, rows[i-1].Height)
		}
	}

	blocks := make([]*simtypes.Block, len(rows))
	var prevID simtypes.BlockID
	for i, row := range rows {
		id := simtypes.NewBlockID(simtypes.Height(row.Height), rootPoolID)
		ts := row.Timestamp
		blocks[i] = &simtypes.Block{
			ID:            id,
			Height:        simtypes.Height(row.Height),
			PoolID:        rootPoolID,
			PrevID:        prevID,
			SimClock:      float64(ts),
			Timestamp:     &ts,
			Difficulty:    row.Difficulty,
			CumDifficulty: row.CumulativeDifficulty,
			Broadcast:     simtypes.BroadcastPublic,
		}
		prevID = id
	}
	return blocks, nil
}

func parseRows(r io.Reader, path string) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 4
	cr.TrimLeadingSpace = true

	var rows []Row
	lineNo := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		lineNo++
		if err != nil {
			return nil, fmt.Errorf("%w: %s row %d: %v", simerrors.ErrBootstrap, path, lineNo, err)
		}
		if lineNo == 1 && isHeaderRow(rec) {
			continue
		}

		height, err := strconv.ParseInt(rec[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s row %d: bad height %q: %v", simerrors.ErrBootstrap, path, lineNo, rec[0], err)
		}
		ts, err := strconv.ParseInt(rec[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s row %d: bad timestamp %q: %v", simerrors.ErrBootstrap, path, lineNo, rec[1], err)
		}
		diff, ok := new(big.Int).SetString(rec[2], 10)
		if !ok {
			return nil, fmt.Errorf("%w: %s row %d: bad difficulty %q", simerrors.ErrBootstrap, path, lineNo, rec[2])
		}
		cum, ok := new(big.Int).SetString(rec[3], 10)
		if !ok {
			return nil, fmt.Errorf("%w: %s row %d: bad cumulative_difficulty %q", simerrors.ErrBootstrap, path, lineNo, rec[3])
		}
		rows = append(rows, Row{Height: height, Timestamp: ts, Difficulty: diff, CumulativeDifficulty: cum})
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s contains no data rows", simerrors.ErrBootstrap, path)
	}
	return rows, nil
}

func isHeaderRow(rec []string) bool {
	_, err := strconv.ParseInt(rec[0], 10, 64)
	return err != nil
}
