package plan

import (
	"errors"
	"fmt"
	"time"
)

// Settings holds every tunable threshold of the extraction core. One value is
// built at startup and handed to each component when it is constructed.
type Settings struct {
	Normalize  NormalizeSettings  `mapstructure:"normalize" json:"normalize" yaml:"normalize"`
	Dimension  DimensionSettings  `mapstructure:"dimension" json:"dimension" yaml:"dimension"`
	Room       RoomSettings       `mapstructure:"room" json:"room" yaml:"room"`
	Door       DoorSettings       `mapstructure:"door" json:"door" yaml:"door"`
	Classifier ClassifierSettings `mapstructure:"classifier" json:"classifier" yaml:"classifier"`
	Confidence ConfidenceSettings `mapstructure:"confidence" json:"confidence" yaml:"confidence"`
	Validation ValidationSettings `mapstructure:"validation" json:"validation" yaml:"validation"`
	Pipeline   PipelineSettings   `mapstructure:"pipeline" json:"pipeline" yaml:"pipeline"`
}

// NormalizeSettings tune glyph merging and arc fitting
type NormalizeSettings struct {
	// OutputUnitsPerInch is the scale of the normalized frame.
	OutputUnitsPerInch float64 `mapstructure:"output_units_per_inch" json:"output_units_per_inch" yaml:"output_units_per_inch"`
	// GlyphGapRatio is the largest horizontal gap, in glyph widths, that still joins two runs.
	GlyphGapRatio float64 `mapstructure:"glyph_gap_ratio" json:"glyph_gap_ratio" yaml:"glyph_gap_ratio"`
	// SpaceGapRatio is the gap, in glyph widths, above which a space is inserted.
	SpaceGapRatio float64 `mapstructure:"space_gap_ratio" json:"space_gap_ratio" yaml:"space_gap_ratio"`
	// BaselineRatio is the largest baseline delta, in font sizes, for runs on one line.
	BaselineRatio   float64 `mapstructure:"baseline_ratio" json:"baseline_ratio" yaml:"baseline_ratio"`
	ArcFitTolerance float64 `mapstructure:"arc_fit_tolerance" json:"arc_fit_tolerance" yaml:"arc_fit_tolerance"`
	MinArcPoints    int     `mapstructure:"min_arc_points" json:"min_arc_points" yaml:"min_arc_points"`
	// CollinearTolerance is the largest deviation from a straight chord, relative to its length.
	CollinearTolerance float64 `mapstructure:"collinear_tolerance" json:"collinear_tolerance" yaml:"collinear_tolerance"`
}

// DimensionSettings tune dimension association and plausibility
type DimensionSettings struct {
	// CorridorFactor scales the text height into the anchor search distance.
	CorridorFactor     float64 `mapstructure:"corridor_factor" json:"corridor_factor" yaml:"corridor_factor"`
	MinPlausibleInches float64 `mapstructure:"min_plausible_inches" json:"min_plausible_inches" yaml:"min_plausible_inches"`
	MaxPlausibleInches float64 `mapstructure:"max_plausible_inches" json:"max_plausible_inches" yaml:"max_plausible_inches"`
}

// RoomSettings tune room labels and bbox inference
type RoomSettings struct {
	NameRadius            float64 `mapstructure:"name_radius" json:"name_radius" yaml:"name_radius"`
	AboveBonus            float64 `mapstructure:"above_bonus" json:"above_bonus" yaml:"above_bonus"`
	LeftBonus             float64 `mapstructure:"left_bonus" json:"left_bonus" yaml:"left_bonus"`
	FallbackMargin        float64 `mapstructure:"fallback_margin" json:"fallback_margin" yaml:"fallback_margin"`
	MinRoomArea           float64 `mapstructure:"min_room_area" json:"min_room_area" yaml:"min_room_area"`
	MaxRoomAreaRatio      float64 `mapstructure:"max_room_area_ratio" json:"max_room_area_ratio" yaml:"max_room_area_ratio"`
	MaxRayDistance        float64 `mapstructure:"max_ray_distance" json:"max_ray_distance" yaml:"max_ray_distance"`
	MinWallLength         float64 `mapstructure:"min_wall_length" json:"min_wall_length" yaml:"min_wall_length"`
	DimensionSearchRadius float64 `mapstructure:"dimension_search_radius" json:"dimension_search_radius" yaml:"dimension_search_radius"`
	EnclosingFit          float64 `mapstructure:"enclosing_fit" json:"enclosing_fit" yaml:"enclosing_fit"`
	WallRayFit            float64 `mapstructure:"wall_ray_fit" json:"wall_ray_fit" yaml:"wall_ray_fit"`
	FallbackFit           float64 `mapstructure:"fallback_fit" json:"fallback_fit" yaml:"fallback_fit"`
}

// DoorSettings tune arc acceptance and door association
type DoorSettings struct {
	MinSwing float64 `mapstructure:"min_swing" json:"min_swing" yaml:"min_swing"`
	MaxSwing float64 `mapstructure:"max_swing" json:"max_swing" yaml:"max_swing"`
	// MinRadius and MaxRadius bound the door leaf width in normalized units.
	MinRadius float64 `mapstructure:"min_radius" json:"min_radius" yaml:"min_radius"`
	MaxRadius float64 `mapstructure:"max_radius" json:"max_radius" yaml:"max_radius"`
	// WallSearchFactor scales the arc radius into the wall search distance.
	WallSearchFactor float64 `mapstructure:"wall_search_factor" json:"wall_search_factor" yaml:"wall_search_factor"`
	// WallAngleTolerance is how far, in degrees, a wall may turn from the
	// nearer leaf end direction. Zero accepts any direction.
	WallAngleTolerance  float64 `mapstructure:"wall_angle_tolerance" json:"wall_angle_tolerance" yaml:"wall_angle_tolerance"`
	BorderTolerance     float64 `mapstructure:"border_tolerance" json:"border_tolerance" yaml:"border_tolerance"`
	LabelRadius         float64 `mapstructure:"label_radius" json:"label_radius" yaml:"label_radius"`
	DoubleDoorTolerance float64 `mapstructure:"double_door_tolerance" json:"double_door_tolerance" yaml:"double_door_tolerance"`
}

// ClassifierSettings weight the density signals of the page classifier
type ClassifierSettings struct {
	// Each density term adds weight per match, up to its score cap.
	RoomMatchWeight   float64 `mapstructure:"room_match_weight" json:"room_match_weight" yaml:"room_match_weight"`
	RoomScoreCap      float64 `mapstructure:"room_score_cap" json:"room_score_cap" yaml:"room_score_cap"`
	DoorArcWeight     float64 `mapstructure:"door_arc_weight" json:"door_arc_weight" yaml:"door_arc_weight"`
	DoorScoreCap      float64 `mapstructure:"door_score_cap" json:"door_score_cap" yaml:"door_score_cap"`
	DimensionWeight   float64 `mapstructure:"dimension_weight" json:"dimension_weight" yaml:"dimension_weight"`
	DimensionScoreCap float64 `mapstructure:"dimension_score_cap" json:"dimension_score_cap" yaml:"dimension_score_cap"`
	OtherBaseline     float64 `mapstructure:"other_baseline" json:"other_baseline" yaml:"other_baseline"`
}

// ConfidenceSettings weight the confidence formula and the merge
type ConfidenceSettings struct {
	PatternWeight  float64 `mapstructure:"pattern_weight" json:"pattern_weight" yaml:"pattern_weight"`
	GeometryWeight float64 `mapstructure:"geometry_weight" json:"geometry_weight" yaml:"geometry_weight"`
	// AgreementBonus is added per extra agreeing page, up to BonusCap.
	AgreementBonus    float64 `mapstructure:"agreement_bonus" json:"agreement_bonus" yaml:"agreement_bonus"`
	BonusCap          float64 `mapstructure:"bonus_cap" json:"bonus_cap" yaml:"bonus_cap"`
	DuplicateRadius   float64 `mapstructure:"duplicate_radius" json:"duplicate_radius" yaml:"duplicate_radius"`
	PositionGrid      float64 `mapstructure:"position_grid" json:"position_grid" yaml:"position_grid"`
	LowConfidence     float64 `mapstructure:"low_confidence" json:"low_confidence" yaml:"low_confidence"`
	VeryLowConfidence float64 `mapstructure:"very_low_confidence" json:"very_low_confidence" yaml:"very_low_confidence"`
}

// ValidationSettings gate ground-truth and corpus comparisons
type ValidationSettings struct {
	MinCorpusSize    int     `mapstructure:"min_corpus_size" json:"min_corpus_size" yaml:"min_corpus_size"`
	MinGroundTruth   int     `mapstructure:"min_ground_truth" json:"min_ground_truth" yaml:"min_ground_truth"`
	NameSimilarity   float64 `mapstructure:"name_similarity" json:"name_similarity" yaml:"name_similarity"`
	MaxTokenDistance int     `mapstructure:"max_token_distance" json:"max_token_distance" yaml:"max_token_distance"`
	MinFuzzyIDLength int     `mapstructure:"min_fuzzy_id_length" json:"min_fuzzy_id_length" yaml:"min_fuzzy_id_length"`
}

// PipelineSettings bound the page workers
type PipelineSettings struct {
	Workers     int           `mapstructure:"workers" json:"workers" yaml:"workers"`
	PageTimeout time.Duration `mapstructure:"page_timeout" json:"page_timeout" yaml:"page_timeout"`
}

// DefaultSettings returns the thresholds tuned on Quebec school plan sets.
func DefaultSettings() Settings {
	return Settings{
		Normalize: NormalizeSettings{
			OutputUnitsPerInch: DefaultUnitsPerInch,
			GlyphGapRatio:      1.5,
			SpaceGapRatio:      0.3,
			BaselineRatio:      0.5,
			ArcFitTolerance:    0.02,
			MinArcPoints:       5,
			CollinearTolerance: 0.01,
		},
		Dimension: DimensionSettings{
			CorridorFactor:     3.0,
			MinPlausibleInches: 6,
			MaxPlausibleInches: 1200,
		},
		Room: RoomSettings{
			NameRadius:            60,
			AboveBonus:            10,
			LeftBonus:             5,
			FallbackMargin:        20,
			MinRoomArea:           400,
			MaxRoomAreaRatio:      0.5,
			MaxRayDistance:        300,
			MinWallLength:         15,
			DimensionSearchRadius: 80,
			EnclosingFit:          1.0,
			WallRayFit:            0.75,
			FallbackFit:           0.3,
		},
		Door: DoorSettings{
			MinSwing:            60,
			MaxSwing:            120,
			MinRadius:           4,
			MaxRadius:           120,
			WallSearchFactor:    1.5,
			WallAngleTolerance:  15,
			BorderTolerance:     6,
			LabelRadius:         40,
			DoubleDoorTolerance: 0.15,
		},
		Classifier: ClassifierSettings{
			RoomMatchWeight:   2,
			RoomScoreCap:      20,
			DoorArcWeight:     1.5,
			DoorScoreCap:      15,
			DimensionWeight:   0.5,
			DimensionScoreCap: 20,
			OtherBaseline:     1,
		},
		Confidence: ConfidenceSettings{
			PatternWeight:     0.6,
			GeometryWeight:    0.4,
			AgreementBonus:    0.05,
			BonusCap:          0.1,
			DuplicateRadius:   30,
			PositionGrid:      5,
			LowConfidence:     0.7,
			VeryLowConfidence: 0.4,
		},
		Validation: ValidationSettings{
			MinCorpusSize:    500,
			MinGroundTruth:   1,
			NameSimilarity:   0.8,
			MaxTokenDistance: 1,
			MinFuzzyIDLength: 4,
		},
		Pipeline: PipelineSettings{
			Workers:     4,
			PageTimeout: 30 * time.Second,
		},
	}
}

// Validate checks the settings for values no component can work with
func (s Settings) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	n := s.Normalize
	check(n.OutputUnitsPerInch > 0, "normalize.output_units_per_inch must be positive")
	check(n.GlyphGapRatio > 0, "normalize.glyph_gap_ratio must be positive")
	check(n.SpaceGapRatio >= 0 && n.SpaceGapRatio <= n.GlyphGapRatio,
		"normalize.space_gap_ratio must be between 0 and glyph_gap_ratio")
	check(n.BaselineRatio > 0, "normalize.baseline_ratio must be positive")
	check(n.ArcFitTolerance > 0 && n.ArcFitTolerance < 1, "normalize.arc_fit_tolerance must be in (0,1)")
	check(n.MinArcPoints >= 3, "normalize.min_arc_points must be at least 3")

	d := s.Dimension
	check(d.CorridorFactor > 0, "dimension.corridor_factor must be positive")
	check(d.MaxPlausibleInches > d.MinPlausibleInches, "dimension plausible range is empty")

	r := s.Room
	check(r.NameRadius > 0, "room.name_radius must be positive")
	check(r.FallbackMargin >= 0, "room.fallback_margin must not be negative")
	check(r.MaxRoomAreaRatio > 0 && r.MaxRoomAreaRatio <= 1, "room.max_room_area_ratio must be in (0,1]")
	check(r.FallbackFit < r.WallRayFit && r.WallRayFit <= r.EnclosingFit,
		"room fit qualities must rank enclosing >= wall rays > fallback")

	dr := s.Door
	check(dr.MinSwing > 0 && dr.MaxSwing <= 180 && dr.MinSwing < dr.MaxSwing,
		"door swing range must lie within (0,180]")
	check(dr.MinRadius > 0 && dr.MinRadius < dr.MaxRadius, "door radius range is empty")

	c := s.Confidence
	check(c.PatternWeight >= 0 && c.GeometryWeight >= 0 && c.PatternWeight+c.GeometryWeight > 0,
		"confidence weights must be non-negative and not both zero")
	check(c.BonusCap >= 0 && c.AgreementBonus >= 0, "confidence bonuses must not be negative")

	check(s.Classifier.OtherBaseline > 0, "classifier.other_baseline must be positive")
	check(s.Validation.MinCorpusSize >= 0, "validation.min_corpus_size must not be negative")
	check(s.Validation.NameSimilarity > 0 && s.Validation.NameSimilarity <= 1,
		"validation.name_similarity must be in (0,1]")
	check(s.Pipeline.Workers > 0, "pipeline.workers must be positive")

	return errors.Join(errs...)
}
