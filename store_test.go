package pkstore

import (
	"errors"
	"log/slog"
	"path/filepath"
	"reflect"
	"testing"
)

func init() {
	slog.SetLogLoggerLevel(slog.LevelDebug)
}

var items = []struct {
	PK, SK, EntityType string
}{
	{"pk1", "a", "account"},
	{"pk2", "b", "user"},
	{"pk3", "c", "user"},
	{"pk4", "d", "account"},
	{"pk5", "e", "account"},
}

func item(pk, sk, entityType string) Record {
	r := NewRecord(map[string]any{"PK": pk, "SK": sk})
	if entityType != "" {
		r.Set(DefaultEntityTypeField, entityType)
	}
	return r
}

func TestStore_GetPutDelete(t *testing.T) {
	forEachEngine(t, func(t *testing.T, st *Store) {
		k := Key{"pk1", "a"}
		_, err := st.Get(k)
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("** Get(%v) err = %v, wanted ErrNotFound", k, err)
		}

		ensure(st.Put(k, item("pk1", "a", "account")))
		rec := must(st.Get(k))
		deepEqual(t, rec.EntityType(), Present("account"))
		deepEqual(t, rec.Get("PK"), Present("pk1"))
		deepEqual(t, must(st.Exists(k)), true)

		ensure(st.Put(k, item("pk1", "a", "user")))
		deepEqual(t, must(st.Get(k)).EntityType(), Present("user"))

		ensure(st.Delete(k))
		deepEqual(t, must(st.Exists(k)), false)
		ensure(st.Delete(k)) // deleting a missing key is fine
	})
}

func TestStore_invalidKey(t *testing.T) {
	st := setup(t, EngineMem)
	var ike *InvalidKeyError
	if err := st.Put(Key{PK: "pk"}, Record{}); !errors.As(err, &ike) {
		t.Errorf("** Put err = %v, wanted *InvalidKeyError", err)
	}
	if _, err := st.Get(Key{SK: "sk"}); !errors.As(err, &ike) {
		t.Errorf("** Get err = %v, wanted *InvalidKeyError", err)
	}
	if err := st.Delete(Key{}); !errors.As(err, &ike) {
		t.Errorf("** Delete err = %v, wanted *InvalidKeyError", err)
	}
}

func TestStore_PutRaw(t *testing.T) {
	st := setup(t, EngineMem)
	raw := must(EncodeRecord(item("pk2", "b", "user")))
	ensure(st.PutRaw(Key{"pk2_deleted", "b"}, raw))
	deepEqual(t, must(st.GetRaw(Key{"pk2_deleted", "b"})), raw)

	var cve *CorruptValueError
	err := st.PutRaw(Key{"pk", "x"}, []byte("garbage"))
	if !errors.As(err, &cve) {
		t.Fatalf("** PutRaw(garbage) err = %v, wanted *CorruptValueError", err)
	}
	deepEqual(t, cve.Key, Key{"pk", "x"})
	deepEqual(t, must(st.Exists(Key{"pk", "x"})), false)
}

func TestStore_iteration(t *testing.T) {
	forEachEngine(t, func(t *testing.T, st *Store) {
		ensure(st.Put(Key{"pk1", "a"}, item("pk1", "a", "account")))
		ensure(st.Put(Key{"pk4", "d"}, item("pk4", "d", "account")))
		ensure(st.Put(Key{"pk2", "b"}, item("pk2", "b", "user")))

		keys := must(All(st.Keys()))
		deepEqual(t, keys, []Key{{"pk1", "a"}, {"pk2", "b"}, {"pk4", "d"}})

		var pks []string
		for rec, err := range st.Values() {
			ensure(err)
			pk, _ := rec.Get("PK").String()
			pks = append(pks, pk)
		}
		deepEqual(t, pks, []string{"pk1", "pk2", "pk4"})

		var types []string
		for ent, err := range st.Entries() {
			ensure(err)
			et, _ := ent.Record.EntityType().String()
			types = append(types, ent.Key.String()+"="+et)
			deepEqual(t, ent.Raw, must(st.GetRaw(ent.Key)))
		}
		deepEqual(t, types, []string{"pk1/a=account", "pk2/b=user", "pk4/d=account"})
	})
}

func TestStore_iteration_paging(t *testing.T) {
	forEachEngine(t, func(t *testing.T, st *Store) {
		st.batchSize = 2
		for _, it := range items {
			ensure(st.Put(Key{it.PK, it.SK}, item(it.PK, it.SK, it.EntityType)))
		}
		keys := must(All(st.Keys()))
		deepEqual(t, len(keys), len(items))
		for i, it := range items {
			deepEqual(t, keys[i], Key{it.PK, it.SK})
		}

		// abandoning early holds nothing, so writes are fine right after
		for range st.Keys() {
			break
		}
		ensure(st.Delete(Key{"pk1", "a"}))
		deepEqual(t, len(must(All(st.Keys()))), len(items)-1)
	})
}

func TestStore_iteration_emptyStore(t *testing.T) {
	forEachEngine(t, func(t *testing.T, st *Store) {
		isempty(t, must(All(st.Entries())))
	})
}

func TestStore_iteration_writeDuringScan(t *testing.T) {
	forEachEngine(t, func(t *testing.T, st *Store) {
		st.batchSize = 2
		for _, it := range items {
			ensure(st.Put(Key{it.PK, it.SK}, item(it.PK, it.SK, it.EntityType)))
		}
		// deleting entries behind and ahead of the cursor must not break the scan
		var seen []Key
		for key, err := range st.Keys() {
			ensure(err)
			seen = append(seen, key)
			ensure(st.Delete(key))
			if key.PK == "pk2" {
				ensure(st.Delete(Key{"pk5", "e"}))
			}
		}
		deepEqual(t, seen[:3], []Key{{"pk1", "a"}, {"pk2", "b"}, {"pk3", "c"}})
		isempty(t, must(All(st.Keys())))
	})
}

func TestStore_iteration_corruptValue(t *testing.T) {
	st := setup(t, EngineMem)
	ensure(st.Put(Key{"pk1", "a"}, item("pk1", "a", "account")))
	ensure(st.Engine().Put(must(EncodeKey(Key{"pk2", "b"})), []byte("not a record")))
	ensure(st.Put(Key{"pk3", "c"}, item("pk3", "c", "user")))

	var good []Key
	var bad []Key
	for ent, err := range st.Entries() {
		var cve *CorruptValueError
		if errors.As(err, &cve) {
			bad = append(bad, cve.Key)
			deepEqual(t, ent.Raw, []byte("not a record"))
			continue
		}
		ensure(err)
		good = append(good, ent.Key)
	}
	deepEqual(t, good, []Key{{"pk1", "a"}, {"pk3", "c"}})
	deepEqual(t, bad, []Key{{"pk2", "b"}})

	_, err := All(st.Values())
	var cve *CorruptValueError
	if !errors.As(err, &cve) {
		t.Errorf("** All(Values()) err = %v, wanted *CorruptValueError", err)
	}
}

func TestStore_iteration_invalidKey(t *testing.T) {
	st := setup(t, EngineMem)
	ensure(st.Engine().Put([]byte("raw"), must(EncodeRecord(Record{}))))
	_, err := All(st.Keys())
	var ike *InvalidKeyError
	if !errors.As(err, &ike) {
		t.Errorf("** All(Keys()) err = %v, wanted *InvalidKeyError", err)
	}
}

func TestStore_events(t *testing.T) {
	forEachEngine(t, func(t *testing.T, st *Store) {
		var log1, log2 []string
		st.Subscribe(func(chg Change) { log1 = append(log1, chg.String()) })
		st.Subscribe(func(chg Change) { log2 = append(log2, chg.String()) })

		ensure(st.Put(Key{"pk1", "a"}, item("pk1", "a", "account")))
		// delivered before Put returned
		deepEqual(t, log1, []string{"put pk1/a"})
		deepEqual(t, log2, []string{"put pk1/a"})

		ensure(st.Delete(Key{"pk1", "a"}))
		ensure(st.Close())
		deepEqual(t, log1, []string{"put pk1/a", "delete pk1/a", "closed"})
		deepEqual(t, log2, log1)
	})
}

func TestStore_events_readFromListener(t *testing.T) {
	st := setup(t, EngineMem)
	var seen []Field
	st.Subscribe(func(chg Change) {
		if chg.Op == OpPut {
			seen = append(seen, must(st.Get(chg.Key)).EntityType())
		}
	})
	ensure(st.Put(Key{"pk1", "a"}, item("pk1", "a", "account")))
	deepEqual(t, seen, []Field{Present("account")})
}

func TestStore_events_noEventOnFailure(t *testing.T) {
	st := setup(t, EngineMem)
	var n int
	st.Subscribe(func(chg Change) { n++ })
	_ = st.Put(Key{}, Record{})
	_ = st.PutRaw(Key{"pk", "a"}, nil)
	deepEqual(t, n, 0)
}

func TestStore_closed(t *testing.T) {
	forEachEngine(t, func(t *testing.T, st *Store) {
		ensure(st.Put(Key{"pk1", "a"}, item("pk1", "a", "account")))

		var closed int
		st.Subscribe(func(chg Change) {
			if chg.Op == OpClosed {
				closed++
			}
		})
		ensure(st.Close())
		deepEqual(t, st.IsClosed(), true)

		if _, err := st.Get(Key{"pk1", "a"}); !errors.Is(err, ErrClosed) {
			t.Errorf("** Get after Close: err = %v, wanted ErrClosed", err)
		}
		if err := st.Put(Key{"pk1", "a"}, Record{}); !errors.Is(err, ErrClosed) {
			t.Errorf("** Put after Close: err = %v, wanted ErrClosed", err)
		}
		if err := st.Delete(Key{"pk1", "a"}); !errors.Is(err, ErrClosed) {
			t.Errorf("** Delete after Close: err = %v, wanted ErrClosed", err)
		}
		if _, err := All(st.Keys()); !errors.Is(err, ErrClosed) {
			t.Errorf("** Keys after Close: err = %v, wanted ErrClosed", err)
		}
		if err := st.Close(); !errors.Is(err, ErrClosed) {
			t.Errorf("** second Close: err = %v, wanted ErrClosed", err)
		}
		deepEqual(t, closed, 1)
	})
}

func TestStore_closedDuringIteration(t *testing.T) {
	st := setup(t, EngineMem)
	st.batchSize = 1
	ensure(st.Put(Key{"pk1", "a"}, item("pk1", "a", "account")))
	ensure(st.Put(Key{"pk2", "b"}, item("pk2", "b", "user")))

	var keys []Key
	var lastErr error
	for key, err := range st.Keys() {
		if err != nil {
			lastErr = err
			break
		}
		keys = append(keys, key)
		ensure(st.Close())
	}
	deepEqual(t, keys, []Key{{"pk1", "a"}})
	if !errors.Is(lastErr, ErrClosed) {
		t.Errorf("** err = %v, wanted ErrClosed", lastErr)
	}
}

func TestStore_reopen(t *testing.T) {
	for _, engine := range []string{EngineBolt, EngineLevel, EngineSQLite} {
		t.Run(engine, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "db")
			st := must(OpenPath(engine, path, Options{}))
			ensure(st.Put(Key{"pk1", "a"}, item("pk1", "a", "account")))
			ensure(st.Close())

			st = must(OpenPath(engine, path, Options{}))
			defer st.Close()
			deepEqual(t, must(st.Get(Key{"pk1", "a"})).EntityType(), Present("account"))
		})
	}
}

func TestStore_jsonCodec(t *testing.T) {
	st := Open(NewMemStorage(), Options{Codec: EnvelopeCodec{Encoding: JSON}})
	defer st.Close()
	ensure(st.Put(Key{"pk1", "a"}, item("pk1", "a", "account")))
	raw := must(st.GetRaw(Key{"pk1", "a"}))
	deepEqual(t, valueFlags(raw[0])&vfEncodingMask, vfJSON)
	deepEqual(t, must(st.Get(Key{"pk1", "a"})).EntityType(), Present("account"))
}

func TestStore_entityTypeField(t *testing.T) {
	st := Open(NewMemStorage(), Options{})
	deepEqual(t, st.EntityTypeField(), DefaultEntityTypeField)
	ensure(st.Close())

	st = Open(NewMemStorage(), Options{EntityTypeField: "kind"})
	defer st.Close()
	deepEqual(t, st.EntityTypeField(), "kind")
	rec := NewRecord(map[string]any{"kind": "user", DefaultEntityTypeField: "account"})
	deepEqual(t, st.EntityType(rec), Present("user"))
	deepEqual(t, st.EntityType(Record{}), Absent())
}

func TestStore_numbers(t *testing.T) {
	for _, enc := range []Encoding{MsgPack, JSON} {
		for _, engine := range Engines {
			t.Run(enc.String()+"/"+engine, func(t *testing.T) {
				st := Open(must(OpenStorage(engine, filepath.Join(t.TempDir(), "db"))), Options{Codec: EnvelopeCodec{Encoding: enc}})
				defer st.Close()
				k := Key{"pk1", "a"}
				ensure(st.Put(k, NewRecord(map[string]any{"age": 5, "neg": -3, "big": 300, "ratio": 2.5, "whole": 2.0})))

				rec := must(st.Get(k))
				deepEqual(t, rec.Fields(), map[string]any{"age": int64(5), "neg": int64(-3), "big": int64(300), "ratio": 2.5, "whole": 2.0})

				// a record read back stores exactly the same bytes
				raw := must(st.GetRaw(k))
				ensure(st.Put(k, rec))
				deepEqual(t, must(st.GetRaw(k)), raw)
			})
		}
	}
}

func forEachEngine(t *testing.T, f func(t *testing.T, st *Store)) {
	for _, engine := range Engines {
		t.Run(engine, func(t *testing.T) {
			f(t, setup(t, engine))
		})
	}
}

func setup(t testing.TB, engine string) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test."+engine)
	var s Storage
	switch engine {
	case EngineBolt:
		s = must(OpenBolt(path, BoltOptions{IsTesting: true}))
	case EngineLevel:
		s = must(NewLevelMem())
	default:
		s = must(OpenStorage(engine, path))
	}
	st := Open(s, Options{Verbose: testing.Verbose()})
	t.Cleanup(func() {
		if err := st.Close(); err != nil && !errors.Is(err, ErrClosed) {
			t.Errorf("** close: %v", err)
		}
	})
	return st
}

func deepEqual[T any](t testing.TB, a, e T) {
	if !reflect.DeepEqual(a, e) {
		t.Helper()
		t.Errorf("** got %v, wanted %v", a, e)
	}
}

func isempty[T any, S ~[]T](t testing.TB, a S) {
	if len(a) > 0 {
		t.Helper()
		t.Errorf("** got %v, wanted empty slice", a)
	}
}
