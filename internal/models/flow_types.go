// Package models defines flow type definitions to avoid circular imports.
package models

// FlowType identifies a conversation definition.
type FlowType string

// StateType represents a specific state within a flow.
type StateType string

// DataKey represents a key for storing state-specific scratch data.
type DataKey string

// Flow type constants.
const (
	FlowTypeIntake   FlowType = "intake"
	FlowTypeWallet   FlowType = "wallet"
	FlowTypeSettings FlowType = "settings"
	FlowTypeListing  FlowType = "listing"
)

// StateEnd is the terminal marker returned by handlers to finish a flow.
// It is never stored; reaching it resets the session.
const StateEnd StateType = "END"

// State constants for the intake flow, one per collected field.
const (
	StateIntakeName            StateType = "NAME"
	StateIntakeMobileSelect    StateType = "MOBILE_SELECT"
	StateIntakeCodeVerify      StateType = "CODE_VERIFY"
	StateIntakeDisclaimer      StateType = "DISCLAIMER"
	StateIntakeRewardAmount    StateType = "REWARD_AMOUNT"
	StateIntakeSubjectName     StateType = "SUBJECT_NAME"
	StateIntakeRelation        StateType = "RELATION"
	StateIntakePhoto           StateType = "PHOTO"
	StateIntakeLastSeen        StateType = "LAST_SEEN"
	StateIntakeSex             StateType = "SEX"
	StateIntakeAge             StateType = "AGE"
	StateIntakeHair            StateType = "HAIR"
	StateIntakeEyes            StateType = "EYES"
	StateIntakeHeight          StateType = "HEIGHT"
	StateIntakeWeight          StateType = "WEIGHT"
	StateIntakeFeatures        StateType = "FEATURES"
	StateIntakeReason          StateType = "REASON"
	StateIntakeRewardConfirm   StateType = "REWARD_CONFIRM"
	StateIntakeTransferConfirm StateType = "TRANSFER_CONFIRM"
)

// State constants for the wallet flow.
const (
	StateWalletMenu          StateType = "WALLET_MENU"
	StateWalletCreateConfirm StateType = "WALLET_CREATE_CONFIRM"
)

// State constants for the settings flow.
const (
	StateSettingsMenu     StateType = "SETTINGS_MENU"
	StateSettingsLanguage StateType = "SETTINGS_LANGUAGE"
	StateSettingsCountry  StateType = "SETTINGS_COUNTRY"
	StateSettingsCity     StateType = "SETTINGS_CITY"
)

// State constants for the case listing flow.
const (
	StateListingList      StateType = "LIST"
	StateListingView      StateType = "VIEW"
	StateListingEditField StateType = "EDIT_FIELD"
	StateListingEditValue StateType = "EDIT_VALUE"
)

// Data key constants for scratch data accumulated during flows.
const (
	DataKeyCaseDraft      DataKey = "caseDraft"      // draft case JSON for the intake flow
	DataKeyOTPCode        DataKey = "otpCode"        // server-generated one-time code (in-memory verifier path)
	DataKeyOTPPhone       DataKey = "otpPhone"       // phone number the code was sent to
	DataKeyMobileOptions  DataKey = "mobileOptions"  // saved mobile numbers offered for selection, JSON
	DataKeyCityCandidates DataKey = "cityCandidates" // ambiguous last-seen city matches, JSON
	DataKeyEscrowTx       DataKey = "escrowTx"       // accepted escrow transaction ID, guards against re-transfer on retry
	DataKeyListPage       DataKey = "listPage"       // current listing page number
	DataKeyCaseIDs        DataKey = "caseIDs"        // case IDs shown on the current page, JSON
	DataKeySelectedCase   DataKey = "selectedCase"   // case ID selected in the listing flow
	DataKeyEditField      DataKey = "editField"      // case field chosen for editing
	DataKeyCountry        DataKey = "country"        // country chosen while selecting a city
)
