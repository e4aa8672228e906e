package batch

import "context"

// Job represents a background task that runs inside the batch worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry tracks registered batch jobs by name. A name registers once; a
// duplicate would run the same reconciliation twice in one cycle.
type Registry struct {
	byName map[string]struct{}
	jobs   []Job
}

// NewRegistry builds a registry preloaded with the provided jobs.
func NewRegistry(jobs ...Job) *Registry {
	registry := &Registry{byName: map[string]struct{}{}}
	for _, job := range jobs {
		registry.Register(job)
	}
	return registry
}

// Register adds a job unless its name is already taken.
func (r *Registry) Register(job Job) {
	if job == nil {
		return
	}
	if _, taken := r.byName[job.Name()]; taken {
		return
	}
	r.byName[job.Name()] = struct{}{}
	r.jobs = append(r.jobs, job)
}

// Jobs returns the registered jobs in registration order.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, len(r.jobs))
	copy(jobs, r.jobs)
	return jobs
}

// Names lists the registered job names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.jobs))
	for _, job := range r.jobs {
		names = append(names, job.Name())
	}
	return names
}
