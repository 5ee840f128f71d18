package workflow

import (
	"context"
	"sync"
)

// Pool è un worker pool riusabile con un numero massimo di task concorrenti
type Pool struct {
	sem chan struct{}
}

// NewPool crea un nuovo pool con al massimo maxWorkers task concorrenti
func NewPool(maxWorkers int) *Pool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &Pool{
		sem: make(chan struct{}, maxWorkers),
	}
}

// Run esegue i task rispettando il limite di concorrenza e attende
// che tutti terminino. Un context cancellato fa saltare i task non
// ancora partiti, quelli in corso terminano comunque.
func (p *Pool) Run(ctx context.Context, tasks []func()) {
	var wg sync.WaitGroup

	for _, task := range tasks {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case p.sem <- struct{}{}:
		}

		wg.Add(1)
		go func(fn func()) {
			defer func() {
				<-p.sem
				wg.Done()
			}()
			fn()
		}(task)
	}

	wg.Wait()
}

// MaxWorkers restituisce il limite di concorrenza del pool
func (p *Pool) MaxWorkers() int {
	return cap(p.sem)
}
