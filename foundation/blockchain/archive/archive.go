// Package archive persists finalized blocks to a relational store for
// query and analytics. Writes are fire and forget through a bounded queue
// consumed by a single goroutine, so the archive is never on the critical
// path of accepting a block. Losing an archive write loses nothing the
// chain itself doesn't still have.
package archive

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/calderaledger/caldera/foundation/blockchain/ledger"
)

// EventHandler defines a function that is called when events occur during
// archive processing.
type EventHandler func(v string, args ...any)

// queueDepth bounds the pending write queue. A full queue drops the write
// with a log line rather than back pressuring block acceptance.
const queueDepth = 256

const schema = `
CREATE TABLE IF NOT EXISTS blocks (
	number    INTEGER NOT NULL,
	hash      TEXT    NOT NULL PRIMARY KEY,
	prev_hash TEXT    NOT NULL,
	miner     TEXT    NOT NULL,
	node_id   TEXT    NOT NULL,
	reward    INTEGER NOT NULL,
	trans     INTEGER NOT NULL,
	data      TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS blocks_number ON blocks (number);
CREATE INDEX IF NOT EXISTS blocks_miner  ON blocks (miner);
`

// Archive manages the asynchronous write behind store.
type Archive struct {
	db    *sql.DB
	queue chan ledger.Block
	wg    sync.WaitGroup
	ev    EventHandler
}

// New opens (or creates) the sqlite archive at the specified path and
// starts the writer goroutine.
func New(path string, ev EventHandler) (*Archive, error) {
	if ev == nil {
		ev = func(v string, args ...any) {}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create archive schema: %w", err)
	}

	a := Archive{
		db:    db,
		queue: make(chan ledger.Block, queueDepth),
		ev:    ev,
	}

	a.wg.Add(1)
	go a.writer()

	return &a, nil
}

// Write enqueues a finalized block. It never blocks; when the queue is
// full the write is dropped and logged.
func (a *Archive) Write(block ledger.Block) {
	select {
	case a.queue <- block:
	default:
		a.ev("archive: queue full: dropped block[%d] %s", block.Header.Number, block.Hash)
	}
}

// Close drains the queue and closes the database.
func (a *Archive) Close() error {
	close(a.queue)
	a.wg.Wait()
	return a.db.Close()
}

// =============================================================================

// writer consumes the queue until Close.
func (a *Archive) writer() {
	defer a.wg.Done()

	for block := range a.queue {
		if err := a.store(block); err != nil {
			a.ev("archive: store block[%d]: ERROR: %s", block.Header.Number, err)
		}
	}
}

// store writes one block row. The full block rides along as JSON for
// analytics queries that need transaction detail.
func (a *Archive) store(block ledger.Block) error {
	data, err := json.Marshal(block)
	if err != nil {
		return fmt.Errorf("marshal block: %w", err)
	}

	const q = `
	INSERT OR REPLACE INTO blocks
		(number, hash, prev_hash, miner, node_id, reward, trans, data)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = a.db.Exec(q,
		block.Header.Number,
		block.Hash,
		block.Header.PrevBlockHash,
		block.Origin.Miner,
		block.Origin.NodeID,
		block.Origin.Reward,
		len(block.Trans),
		string(data),
	)
	if err != nil {
		return fmt.Errorf("insert block: %w", err)
	}

	return nil
}

// BlocksByMiner returns the archived block hashes credited to a miner.
// Analytics only; the chain is the consensus authority.
func (a *Archive) BlocksByMiner(miner string) ([]string, error) {
	rows, err := a.db.Query(`SELECT hash FROM blocks WHERE miner = ? ORDER BY number`, miner)
	if err != nil {
		return nil, fmt.Errorf("query blocks by miner: %w", err)
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, fmt.Errorf("scan block hash: %w", err)
		}
		hashes = append(hashes, hash)
	}

	return hashes, rows.Err()
}
