package alignment_build

import (
	"gorm.io/gorm"

	"github.com/traceloom/traceloom-backend/internal/data/elements"
	graphstore "github.com/traceloom/traceloom-backend/internal/data/graph"
	repos "github.com/traceloom/traceloom-backend/internal/data/repos/alignment"
	"github.com/traceloom/traceloom-backend/internal/platform/llm"
	"github.com/traceloom/traceloom-backend/internal/platform/logger"
)

type Pipeline struct {
	db        *gorm.DB
	log       *logger.Logger
	ai        llm.Client
	source    elements.Source
	graph     *graphstore.Store
	sessions  repos.SessionRepo
	elements  repos.ElementRepo
	mergeLog  repos.MergeLogRepo
	tesseract repos.TesseractRepo
	venn      repos.VennRepo
}

func New(
	db *gorm.DB,
	baseLog *logger.Logger,
	ai llm.Client,
	source elements.Source,
	graph *graphstore.Store,
	sessions repos.SessionRepo,
	elementRepo repos.ElementRepo,
	mergeLog repos.MergeLogRepo,
	tesseract repos.TesseractRepo,
	venn repos.VennRepo,
) *Pipeline {
	return &Pipeline{
		db:        db,
		log:       baseLog.With("job", "alignment_build"),
		ai:        ai,
		source:    source,
		graph:     graph,
		sessions:  sessions,
		elements:  elementRepo,
		mergeLog:  mergeLog,
		tesseract: tesseract,
		venn:      venn,
	}
}

func (p *Pipeline) Type() string { return "alignment_build" }
