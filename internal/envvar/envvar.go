package envvar

const (
	// EdgeportEnv is the environment variable used to determine the environment
	EdgeportEnv = "EDGEPORT_ENV"

	// EdgeportYoloBin is the environment variable used to override the export facility binary
	EdgeportYoloBin = "EDGEPORT_YOLO_BIN"

	// EdgeportWorkDir is the environment variable used to override the working directory
	EdgeportWorkDir = "EDGEPORT_WORK_DIR"

	// EdgeportLogFile is the environment variable used to override the log file path
	EdgeportLogFile = "EDGEPORT_LOG_FILE"
)
