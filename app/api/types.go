package api

import (
	"github.com/podcomb/podcomb/app/database"
	"github.com/podcomb/podcomb/app/tasks"
)

type Handler struct {
	podcastRepo database.PodcastRepository
	scheduler   tasks.TaskSchedulerInterface
}
