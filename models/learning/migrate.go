package learning

// All lists the models owned by this package in migration order
func All() []interface{} {
	return []interface{}{
		&ContentPackage{},
		&IngestJob{},
		&Registration{},
		&CMIEntry{},
		&Assignment{},
		&AssignmentLearner{},
		&Enrollment{},
		&ScheduleElement{},
		&ProgressRecord{},
		&ProgressElement{},
	}
}
