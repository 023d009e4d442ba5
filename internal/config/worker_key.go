package config

type WorkerKeyStruct struct {
	RescorePrintsQueue string
}

var WorkerKey = &WorkerKeyStruct{
	RescorePrintsQueue: "rescore_prints_queue",
}
