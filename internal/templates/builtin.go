package templates

// plan is the compact form the built-in workouts are written in.
type plan struct {
	id        string
	name      string
	exercises []planned
}

type planned struct {
	name  string
	sets  int
	reps  string
	notes string
}

var builtin = []plan{
	{
		id:   "a",
		name: "Workout A",
		exercises: []planned{
			{"Double Kettlebell Front Squat", 4, "6-8", "Keep chest up, knees tracking over toes"},
			{"Double Kettlebell Clean", 3, "6", "Explosive hip drive, soft catch"},
			{"Kettlebell Overhead Press", 3, "6-10", "Tight core, full lockout overhead"},
			{"Plank Hold or Stir-the-Pot", 3, "30-60 sec", "Maintain neutral spine throughout"},
		},
	},
	{
		id:   "b",
		name: "Workout B",
		exercises: []planned{
			{"Clean to Front Squat Complex", 3, "5", "Clean + Front Squat = 1 rep"},
			{"Kettlebell Push Press", 3, "6-8", "Use legs to initiate drive"},
			{"Kettlebell Suitcase Carry", 3, "30-40 sec per side", "Keep shoulders level, tall posture"},
			{"Dead Bug or Bird-Dog", 3, "8-10 slow reps", "Focus on control and stability"},
		},
	},
	{
		id:   "c",
		name: "Workout C",
		exercises: []planned{
			{"Kettlebell Swings", 5, "20", "Hip hinge pattern, bell floats to shoulder height"},
			{"Goblet Step-ups or Split Squats", 3, "8 per leg", "Control the eccentric, drive through heel"},
			{"Clean & Press Ladder", 3, "1,2,3 reps × 3 rounds", "Rest as needed between ladder rungs"},
			{"Side Plank (with reach-under or weight)", 2, "per side", "Hold 30-45 seconds, maintain straight line"},
		},
	},
}
