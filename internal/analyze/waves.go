package analyze

import "sync"

// RunWaves executes n tasks in two concurrent waves: the first wave runs up
// to firstWave tasks at once, the remainder runs together as a second wave
// after the first completes. All tasks have finished when RunWaves returns.
// Callers pass a task that writes results by index, so no locking is needed.
// The same primitive backs batch scoring and per-view live checks.
func RunWaves(n, firstWave int, task func(i int)) {
	if n <= 0 {
		return
	}
	if firstWave <= 0 || firstWave > n {
		firstWave = n
	}

	var wg sync.WaitGroup
	for i := 0; i < firstWave; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			task(i)
		}(i)
	}
	wg.Wait()

	if firstWave == n {
		return
	}
	for i := firstWave; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			task(i)
		}(i)
	}
	wg.Wait()
}
