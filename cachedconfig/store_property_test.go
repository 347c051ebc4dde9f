package cachedconfig_test

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/samber/mo"

	"github.com/omarluq/livecfg/cachedconfig"
)

// Property-based tests for ConfigStore refresh semantics.

// runMutationSequence applies a sequence of source mutations against a
// registered handle. Each step either advances the modification marker with
// new content, or rewrites content under the current marker. Every step is
// followed by a forced update. Returns the deserializer call count, the
// number of marker advances, and the final observed value.
func runMutationSequence(bumpMarker []bool) (calls int32, markerBumps int, finalValue, expectedValue int) {
	src := cachedconfig.NewTestSource()
	src.InsertConfig("p", `{"value":0}`, "marker-0")

	store := cachedconfig.NewConfigStore(src, mo.None[time.Duration](), nil)
	defer func() {
		_ = store.Close()
	}()

	var counter atomic.Int32
	handle, err := cachedconfig.GetConfigHandleWithDeserializer(store, "p", countingJSON(&counter))
	if err != nil {
		panic(fmt.Sprintf("failed to register property test handle: %v", err))
	}

	marker := 0
	for step, bump := range bumpMarker {
		value := step + 1
		if bump {
			marker++
			expectedValue = value
		}
		src.InsertConfig("p", fmt.Sprintf(`{"value":%d}`, value), cachedconfig.ModificationTime(fmt.Sprintf("marker-%d", marker)))
		src.InsertToRefresh("p")
		store.ForceUpdateConfigs()
	}

	return counter.Load(), marker, handle.Get().Value, expectedValue
}

func TestStoreDeserializationBoundProperty(t *testing.T) {
	t.Parallel()
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("deserializer runs at most once per marker change", prop.ForAll(
		func(bumpMarker []bool) bool {
			calls, markerBumps, _, _ := runMutationSequence(bumpMarker)

			// One call for the initial registration plus one per advance.
			return calls <= int32(markerBumps)+1
		},
		gen.SliceOf(gen.Bool()),
	))

	properties.Property("every marker advance is deserialized exactly once", prop.ForAll(
		func(bumpMarker []bool) bool {
			calls, markerBumps, _, _ := runMutationSequence(bumpMarker)

			return calls == int32(markerBumps)+1
		},
		gen.SliceOf(gen.Bool()),
	))

	properties.TestingRun(t)
}

func TestStoreFinalValueProperty(t *testing.T) {
	t.Parallel()
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("final value matches the last marker-advancing write", prop.ForAll(
		func(bumpMarker []bool) bool {
			_, _, finalValue, expectedValue := runMutationSequence(bumpMarker)

			return finalValue == expectedValue
		},
		gen.SliceOf(gen.Bool()),
	))

	properties.TestingRun(t)
}

func TestStoreConcurrentGetProperty(t *testing.T) {
	t.Parallel()
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("concurrent Get during refresh observes a complete value", prop.ForAll(
		func(goroutines int) bool {
			if goroutines <= 0 || goroutines > 100 {
				return true
			}

			src := cachedconfig.NewTestSource()
			src.InsertConfig("p", `{"value":1}`, "1")
			store := cachedconfig.NewConfigStore(src, mo.None[time.Duration](), nil)
			defer func() {
				_ = store.Close()
			}()

			handle, err := cachedconfig.GetConfigHandle[tunables](store, "p")
			if err != nil {
				return false
			}

			done := make(chan bool, goroutines)
			for goroutineIdx := 0; goroutineIdx < goroutines; goroutineIdx++ {
				go func() {
					defer func() {
						if recovered := recover(); recovered != nil {
							done <- false
							return
						}
						done <- true
					}()
					got := handle.Get().Value
					if got != 1 && got != 2 {
						panic(fmt.Sprintf("torn read: %d", got))
					}
				}()
			}

			src.InsertConfig("p", `{"value":2}`, "2")
			src.InsertToRefresh("p")
			store.ForceUpdateConfigs()

			for goroutineIdx := 0; goroutineIdx < goroutines; goroutineIdx++ {
				if !<-done {
					return false
				}
			}

			return handle.Get().Value == 2
		},
		gen.IntRange(1, 50),
	))

	properties.TestingRun(t)
}
