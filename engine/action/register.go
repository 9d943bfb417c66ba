package action

// RegisterAll binds every action name in AllNames to its constructor. The
// dependency container calls this once at startup; a second call against
// the same Factory returns ErrDuplicateRegistration. Deps is supplied later,
// per call, by Factory.Create.
func RegisterAll(f *Factory) error {
	ctors := map[Name]Constructor{
		ParseHTML:                             newParseHTML,
		SaveNote:                              newSaveNote,
		ScheduleImages:                        newScheduleImages,
		ScheduleIngredients:                   newScheduleIngredients,
		ScheduleInstructions:                  newScheduleInstructions,
		ScheduleSource:                        newScheduleSource,
		ScheduleCategorizationAfterCompletion: newScheduleCategorizationAfterCompletion,
		UpdateIngredientCount:                 newUpdateIngredientCount,
		ParseIngredientLine:                   newParseIngredientLine,
		SaveIngredientLine:                    newSaveIngredientLine,
		TrackPattern:                          newTrackPattern,
		CompletionStatus:                      newCompletionStatus,
		FormatInstructionLine:                 newFormatInstructionLine,
		SaveInstructionLine:                   newSaveInstructionLine,
		ProcessImage:                          newProcessImage,
		SaveImage:                             newSaveImage,
		DetermineCategory:                     newDetermineCategory,
		SaveCategory:                          newSaveCategory,
		DetermineTags:                         newDetermineTags,
		SaveTags:                              newSaveTags,
		ProcessSource:                         newProcessSource,
		RecordPattern:                         newRecordPattern,
	}

	for _, name := range AllNames {
		ctor, ok := ctors[name]
		if !ok {
			continue
		}
		if err := f.Register(name, ctor); err != nil {
			return err
		}
	}
	return nil
}
