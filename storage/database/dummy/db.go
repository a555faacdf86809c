package dummydb

import (
	"sync"

	"github.com/trezcool/darasa/core/change"
	"github.com/trezcool/darasa/core/record"
)

type (
	DB struct {
		change *changeTable
		record *recordTable
	}

	changeTable struct {
		sync.RWMutex
		table map[int]*change.ChangeRequest
		pk    int
		seq   int64
	}

	recordTable struct {
		sync.RWMutex
		table map[string]*record.Entity // "type:id"
	}
)

func Open() (*DB, error) {
	db := &DB{
		change: &changeTable{table: make(map[int]*change.ChangeRequest)},
		record: &recordTable{table: make(map[string]*record.Entity)},
	}
	return db, nil
}
