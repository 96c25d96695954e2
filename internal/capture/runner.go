package capture

import "context"

// Run executes body bracketed by the lifecycle hooks. A body error or panic
// still produces a flushed log and session teardown; the error is returned
// unchanged and a panic is re-raised verbatim.
func Run(ctx context.Context, lc *Lifecycle, testName string, body func() error) error {
	if err := lc.BeforeTest(ctx, testName); err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			lc.flushAndTeardown()
			panic(r)
		}
	}()

	if err := body(); err != nil {
		return lc.OnTestError(err)
	}
	lc.AfterTest()
	return nil
}
