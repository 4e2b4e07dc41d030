package cron

import "context"

// Job is a scheduled task run by the cron worker.
type Job interface {
	Name() string
	// Schedule is a robfig/cron spec such as "@hourly" or "@every 30m".
	Schedule() string
	Run(ctx context.Context) error
}

// Registry tracks registered cron jobs.
type Registry struct {
	jobs []Job
}

// NewRegistry builds a registry preloaded with the provided jobs.
func NewRegistry(jobs ...Job) *Registry {
	registry := &Registry{}
	for _, job := range jobs {
		registry.Register(job)
	}
	return registry
}

// Register adds a job to the registry.
func (r *Registry) Register(job Job) {
	if job == nil {
		return
	}
	r.jobs = append(r.jobs, job)
}

// Jobs returns the registered jobs in the order they were added.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, len(r.jobs))
	copy(jobs, r.jobs)
	return jobs
}

// Find returns the job registered under name.
func (r *Registry) Find(name string) (Job, bool) {
	for _, job := range r.jobs {
		if job.Name() == name {
			return job, true
		}
	}
	return nil, false
}

type scheduledJob struct {
	Job
	spec string
}

func (j scheduledJob) Schedule() string { return j.spec }

// WithSchedule replaces job's spec. An empty spec keeps the job's default.
func WithSchedule(job Job, spec string) Job {
	if job == nil || spec == "" {
		return job
	}
	return scheduledJob{Job: job, spec: spec}
}
