package ftpd

// FTP reply codes, as assigned by RFC 959 and its extensions (RFC 2228,
// RFC 2389, RFC 3659).
const (
	StatusFileStatusOK    = 150 // File status okay; about to open data connection.
	StatusDirectoryStatus = 212 // Directory status.
	StatusServiceReady    = 220 // Service ready for new user.

	StatusOK                  = 200
	StatusNotImplementedParam = 504
	StatusSystemStatus        = 211
	StatusFileStatus          = 213
	StatusSystemType          = 215
	StatusClosingControlConn  = 221
	StatusClosingDataConn     = 226
	StatusEnteringPASV        = 227
	StatusEnteringEPSV        = 229
	StatusUserLoggedIn        = 230
	StatusAuthAccepted        = 234
	StatusFileOK              = 250
	StatusPathCreated         = 257

	StatusUserOK            = 331
	StatusBadCommandSequence = 503
	StatusFileActionPending = 350

	StatusServiceNotAvailable      = 421
	StatusCannotOpenDataConnection = 425
	StatusTransferAborted          = 426
	StatusActionNotTaken           = 450
	StatusFileActionNotTaken       = 451
	StatusActionAborted            = 552

	StatusSyntaxErrorNotRecognised = 500
	StatusSyntaxErrorParameters    = 501
	StatusCommandNotImplemented    = 502
	StatusNotImplemented           = 502
	StatusNotLoggedIn              = 530
	StatusActionNotTakenNoFile     = 550
)
