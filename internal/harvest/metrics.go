package harvest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PagesFetched tracks listing pages that rendered with the card marker.
	PagesFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_pages_fetched_total",
		Help: "The total number of listing pages fetched and parsed.",
	})
	// PagesFailed tracks pages lost to navigation errors or marker timeouts.
	// Kept separate from PagesEmpty so systematic fetch breakage is not
	// mistaken for the listing having ended.
	PagesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_pages_failed_total",
		Help: "The total number of listing pages that failed to fetch or render.",
	})
	// PagesEmpty tracks pages that rendered but contained no cards.
	PagesEmpty = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_pages_empty_total",
		Help: "The total number of fetched pages that yielded zero cards.",
	})
	// CardsParsed tracks cards that passed required-field validation.
	CardsParsed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_cards_parsed_total",
		Help: "The total number of listing cards parsed into records.",
	})
	// CardsDropped tracks malformed cards missing a required field.
	CardsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_cards_dropped_total",
		Help: "The total number of malformed listing cards dropped.",
	})
	// ImagesSaved tracks successfully acquired pictures.
	ImagesSaved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_images_saved_total",
		Help: "The total number of pictures downloaded and written locally.",
	})
	// ImagesFailed tracks picture downloads that failed; records are kept.
	ImagesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_images_failed_total",
		Help: "The total number of picture downloads that failed.",
	})
	// EnrichmentOutcomes tracks enrichment attempts by outcome.
	EnrichmentOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvester_enrichment_outcomes_total",
		Help: "The total number of enrichment attempts, labeled by outcome.",
	}, []string{"outcome"})
)
