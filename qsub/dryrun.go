package qsub

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/grailbio/base/log"
)

// DryRun is a Client that logs each submission instead of running qsub. It
// answers with a Grid Engine style acknowledgement carrying sequential job
// ids starting at First.
type DryRun struct {
	First int

	mu          sync.Mutex
	next        int
	Submissions []Submission
}

// Ack renders the acknowledgement Grid Engine prints for s with the given id.
func Ack(s Submission, id int) string {
	if s.Tasks != nil {
		return fmt.Sprintf("Your job-array %d.%s:1 (\"%s\") has been submitted\n", id, s.Tasks, s.Name)
	}
	return fmt.Sprintf("Your job %d (\"%s\") has been submitted\n", id, s.Name)
}

// Submit implements Client.
func (d *DryRun) Submit(ctx context.Context, s Submission) (JobHandle, error) {
	d.mu.Lock()
	if d.next < d.First {
		d.next = d.First
	}
	id := d.next
	d.next++
	d.Submissions = append(d.Submissions, s)
	d.mu.Unlock()
	log.Printf("dry run: qsub %s", strings.Join(s.Args(), " "))
	return handle(s, Ack(s, id))
}
