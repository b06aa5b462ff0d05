package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/momentum-planner/internal/application"
	"github.com/example/momentum-planner/internal/calendarsync"
	"github.com/example/momentum-planner/internal/recurrence"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// TaskServiceDeps captures dependencies for constructing a task service.
type TaskServiceDeps struct {
	Tasks       application.TaskRepository
	Syncer      application.CalendarSyncer
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

// NewTaskService builds a task service using the supplied dependencies
// combined with the factory defaults.
func (f *ServiceFactory) NewTaskService(deps TaskServiceDeps) *application.TaskService {
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = f.IDGenerator.NextFunc()
	}
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	return application.NewTaskService(
		deps.Tasks,
		deps.Syncer,
		deps.Logger,
		idGen,
		now,
	)
}

// PlannerServiceDeps captures dependencies for constructing a planner service.
type PlannerServiceDeps struct {
	Tasks       application.TaskRepository
	Blocks      application.TimeBlockRepository
	Repeats     application.RepeatRepository
	Engine      *recurrence.Engine
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

// NewPlannerService builds a planner service using the supplied dependencies.
func (f *ServiceFactory) NewPlannerService(deps PlannerServiceDeps) *application.PlannerService {
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = f.IDGenerator.NextFunc()
	}
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	return application.NewPlannerService(
		deps.Tasks,
		deps.Blocks,
		deps.Repeats,
		deps.Engine,
		deps.Logger,
		idGen,
		now,
	)
}

// OrchestratorDeps captures dependencies for constructing a sync orchestrator.
type OrchestratorDeps struct {
	Store         calendarsync.CalendarStore
	Binder        calendarsync.Binder
	CalendarTitle string
	PromptTimeout time.Duration
	Logger        *slog.Logger
}

// NewOrchestrator builds a calendar sync orchestrator with test defaults: a
// fake in-memory store and binder unless overridden, and a short prompt
// timeout.
func (f *ServiceFactory) NewOrchestrator(deps OrchestratorDeps) *calendarsync.Orchestrator {
	store := deps.Store
	if store == nil {
		store = NewFakeCalendarStore()
	}
	binder := deps.Binder
	if binder == nil {
		binder = NewMemoryBinder()
	}
	title := deps.CalendarTitle
	if title == "" {
		title = "Momentum Planner"
	}
	timeout := deps.PromptTimeout
	if timeout <= 0 {
		timeout = time.Second
	}
	return calendarsync.NewOrchestrator(store, binder, title, timeout, deps.Logger)
}
